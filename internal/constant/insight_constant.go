package constant

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

const (
	MessageTypeText       = "text"
	MessageTypeSQLQuery   = "sql_query"
	MessageTypeDataResult = "data_result"
	MessageTypeSuggestion = "suggestion"
	MessageTypeError      = "error"
)

const (
	ConversationTitleMaxLength = 50
	MinSuggestions             = 3
	MaxSQLResultRows           = 1000
)

// User-facing replies for each terminal branch of a turn.
const (
	NoSchemaMessage             = "I apologize, but I don't have access to the database schema at the moment. Please try again later."
	GenerationFailedMessage     = "I apologize, but I couldn't turn your question into a database query. Please try rephrasing your question."
	ValidationFailedMessageTmpl = "I encountered an issue generating the SQL query: %s. Let me try a different approach."
	ExecutionFailedMessage      = "I encountered an error while retrieving the data. Please try rephrasing your question."
	UnexpectedErrorMessage      = "I apologize, but I encountered an unexpected error. Please try again."
	SynthesisApologyMessage     = "I apologize, but I encountered an error while processing your request. Please try again."
)

const FallbackResponseContext = "The user is asking about business data, but I could not generate a valid SQL query. Provide a helpful general response and suggest they rephrase their question."

const (
	SuggestionIntroTmpl = "I understand you're asking about \"%s\", but I'm specifically designed to help with business data insights and reports."
	SuggestionListIntro = "Here are some questions I can help you with:"
	SuggestionOutro     = "Feel free to ask me anything about your business data, statistics, or reports!"
)

// Metadata keys shared by persisted messages and stream chunks.
const (
	MetaConversationID   = "conversationId"
	MetaProcessingTime   = "processingTime"
	MetaCost             = "cost"
	MetaError            = "error"
	MetaErrorDetails     = "errorDetails"
	MetaValidationErrors = "validationErrors"
	MetaSQLQuery         = "sqlQuery"
	MetaAnalysis         = "analysis"
	MetaSQLGeneration    = "sqlGeneration"
	MetaSuggestions      = "suggestions"
	MetaTimestamp        = "timestamp"
	MetaInterrupted      = "interrupted"
	MetaStage            = "stage"
)

const EventInsightQueryCompleted = "insight.query.completed"
