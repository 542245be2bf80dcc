package service

// FallbackReply se usa cuando la generación falla. Siempre incluye las líneas de crisis.
const FallbackReply = "I'm sorry, I'm having trouble responding right now. Your message is saved, and you're welcome to try again in a moment.\n\n" +
	"If you're going through a hard time or thinking about hurting yourself, please reach out now:\n" +
	"- 988 Suicide & Crisis Lifeline (US): call or text 988\n" +
	"- Crisis Text Line: text HOME to 741741\n" +
	"- Samaritans (UK & Ireland): call 116 123\n" +
	"- If you are in immediate danger, call 911 or your local emergency number."
