package models

const (
	// ConfidenceRegex matches the trailing annotation the model is asked to emit.
	ConfidenceRegex = `\{["']?confidence["']?\s*:\s*([0-9.]+)\}`
	BoldRegex       = `\*\*([^*\n]+)\*\*`
	ItalicRegex     = `\*([^*\n]+)\*`
	CodeRegex       = "`([^`\n]+)`"
	// BulletRegex keeps indentation so nested lists survive.
	BulletRegex = `(?m)^([ \t]*)\*[ \t]+`

	DefaultConfidence   = 0.7
	EscalationThreshold = 0.5
	DefaultTopK         = 5
	DefaultHistoryLimit = 6
	DefaultRelevantFAQs = 3
	DefaultSource       = "unknown"
	MaxMessageLength    = 2000

	RoleUser      = "user"
	RoleAssistant = "assistant"

	NoHistoryPlaceholder = "No previous messages"
	NoFAQPlaceholder     = "No relevant FAQs found"
)

var (
	SystemPrompt = `You are a helpful and accurate customer support assistant. Your goal is to provide precise, helpful answers based on the FAQ knowledge base provided to you.

Guidelines:
1. Use the FAQ excerpts provided to answer questions accurately
2. Be concise but thorough in your responses
3. Use simple, clean formatting without excessive asterisks or markdown
4. Use bullet points (•) for lists, not asterisks (*)
5. Use numbered lists (1. 2. 3.) for steps, not bold formatting
6. If you're unsure or the question is outside your knowledge base, say you'll escalate to a human agent
7. Always be polite and professional
8. After your response, include ONLY a confidence score in JSON format
9. Do not use bold (**text**) or italic (*text*) formatting
10. Keep responses clean and readable

Format your response as plain text with simple formatting:
[Your helpful answer here]

{"confidence": 0.85}`

	PromptTemplate = `%s

CONVERSATION HISTORY:
%s

RELEVANT FAQ EXCERPTS:
%s

CURRENT USER MESSAGE: %s

Please provide your response followed by a confidence score in JSON format.`

	FAQExcerptTemplate = "FAQ%d:\nQ: %s\nA: %s\n"

	// EscalationKeywords are matched as lowercase substrings of the user message.
	EscalationKeywords = []string{
		"refund",
		"fraud",
		"legal",
		"lawsuit",
		"speak to human",
		"speak to a human",
		"talk to person",
		"talk to a person",
		"talk to a human",
		"human agent",
		"manager",
		"escalate",
		"complaint",
		"angry",
		"unacceptable",
	}

	// SampleFAQs seed an empty corpus when no FAQ file is configured.
	SampleFAQs = []FAQEntry{
		{
			Question: "What are your business hours?",
			Answer:   "We are open Monday through Friday, 9 AM to 6 PM EST. Our customer support team is available during these hours to assist you.",
			Source:   "general",
		},
		{
			Question: "How do I reset my password?",
			Answer:   "To reset your password: 1) Click 'Forgot Password' on the login page, 2) Enter your email address, 3) Check your email for a reset link, 4) Follow the link and create a new password.",
			Source:   "account",
		},
		{
			Question: "What is your refund policy?",
			Answer:   "We offer a 30-day money-back guarantee on all purchases. If you're not satisfied, contact our support team within 30 days of purchase for a full refund.",
			Source:   "billing",
		},
		{
			Question: "How do I contact customer support?",
			Answer:   "You can reach our customer support team via: 1) This chat interface, 2) Email at support@example.com, 3) Phone at 1-800-123-4567 during business hours.",
			Source:   "general",
		},
		{
			Question: "Do you offer technical support?",
			Answer:   "Yes! Our technical support team is available to help with any technical issues. You can reach them through this chat, or by calling our dedicated tech support line at 1-800-TECH-HELP.",
			Source:   "technical",
		},
	}
)
