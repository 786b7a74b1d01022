package rag

// contextualizeSystemPrompt rewrites the latest question into a standalone
// form using the chat history, without answering it.
const contextualizeSystemPrompt = "Given a chat history and the latest user question " +
	"which might reference context in the chat history, " +
	"formulate a standalone question which can be understood " +
	"without the chat history. Do NOT answer the question, just " +
	"reformulate it if needed and otherwise return it as is."

// qaSystemPromptPrefix instructs the model to answer from the retrieved
// context only. The assembled context block is appended below it.
const qaSystemPromptPrefix = "You are an assistant for question-answering tasks. Use " +
	"the following pieces of retrieved context to answer the " +
	"question. If you don't know the answer, just say that you " +
	"don't know. Use three sentences maximum and keep the answer " +
	"concise."

// BaselineSystemPrompt drives direct answering without retrieval, for
// baseline comparison runs.
const BaselineSystemPrompt = "You are a medical AI assistant for question-answering tasks. " +
	"Answer the user's question based on your general medical knowledge. " +
	"If you don't know the answer, just say that you don't know. " +
	"Use three sentences maximum and keep the answer concise. " +
	"Focus on providing accurate and helpful medical information."

func qaSystemPrompt(context string) string {
	return qaSystemPromptPrefix + "\n\n" + context
}
