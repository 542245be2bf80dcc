package domain

// ToolID referencia una herramienta del catálogo fijo de afrontamiento.
type ToolID string

const (
	ToolBoxBreathing   ToolID = "box_breathing"
	ToolBreathing478   ToolID = "breathing_478"
	ToolGrounding54321 ToolID = "grounding_54321"
	ToolJournalPrompt  ToolID = "journal_prompt"
	ToolMoodCheckIn    ToolID = "mood_check_in"
	ToolBodyScan       ToolID = "body_scan"
)

type CopingTool struct {
	ID          ToolID `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Minutes     int    `json:"minutes"`
}

var copingTools = []CopingTool{
	{ID: ToolBoxBreathing, Title: "Box breathing", Description: "Inhale, hold, exhale and hold again for four counts each.", Minutes: 3},
	{ID: ToolBreathing478, Title: "4-7-8 breathing", Description: "Inhale for four, hold for seven, exhale slowly for eight.", Minutes: 2},
	{ID: ToolGrounding54321, Title: "5-4-3-2-1 grounding", Description: "Name five things you see, four you feel, three you hear, two you smell, one you taste.", Minutes: 5},
	{ID: ToolJournalPrompt, Title: "Guided journaling", Description: "Write freely about a prompt chosen for how you feel right now.", Minutes: 10},
	{ID: ToolMoodCheckIn, Title: "Mood check-in", Description: "Log how you feel and what might be influencing it.", Minutes: 1},
	{ID: ToolBodyScan, Title: "Body scan", Description: "Move your attention slowly from head to toe and notice tension.", Minutes: 8},
}

// CopingTools devuelve una copia del catálogo.
func CopingTools() []CopingTool {
	out := make([]CopingTool, len(copingTools))
	copy(out, copingTools)
	return out
}

// LookupTool busca una herramienta por id.
func LookupTool(id ToolID) (CopingTool, bool) {
	for _, t := range copingTools {
		if t.ID == id {
			return t, true
		}
	}
	return CopingTool{}, false
}
