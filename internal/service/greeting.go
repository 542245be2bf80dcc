package service

// Todos los saludos aclaran que el acompañante no es un servicio clínico.
var greetingScripts = []string{
	"Hi, I'm your wellbeing companion. I'm here to listen and help you find a moment of calm. I'm not a therapist or a crisis service, but I'm always happy to chat. How are you feeling today?",
	"Welcome! Think of me as a friendly space to check in with yourself. I'm an AI companion, not a medical professional, so for anything urgent please reach out to a crisis line. What's on your mind?",
	"Hello there. I'm an AI companion who can offer a listening ear and a few calming exercises. I can't give clinical advice, but I can keep you company. How has your day been?",
	"Hey, glad you're here. I'm not a counselor or doctor, just a supportive companion you can talk things through with. Want to tell me how you're doing?",
}

func pickGreeting(pick func(n int) int) string {
	i := pick(len(greetingScripts))
	if i < 0 || i >= len(greetingScripts) {
		i = 0
	}
	return greetingScripts[i]
}
