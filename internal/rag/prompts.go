package rag

import (
	"fmt"
	"strings"

	"docqa/internal/model"
)

const (
	DefaultPersona = "You are an experienced researcher and helpful AI assistant. Answer questions about the user's document accurately and concisely."

	rephrasePreamble = "You are an AI assistant that rephrases questions to make them more search friendly. Keep the rephrased question short and focused. Reply with the rephrased question only."

	summarizeInstruction = "You are an AI assistant that summarizes context documents. Write a concise, coherent summary of the relevant documents that captures their main points and their relevance to the user's question."

	generalInstruction = "You are a helpful AI assistant. Give clear, informative and engaging answers to help users with their questions. If you do not know something, be honest about it."

	contextAcknowledgement = "I will answer your questions using the provided documents as context. If I cannot find the answer in the documents, I will consider the question carefully and check the context again. If the context still does not contain the answer, I will give a helpful general answer."
)

func rephrasePrompt(messages []model.ChatMessage) []model.ChatMessage {
	prompt := make([]model.ChatMessage, 0, len(messages)+1)
	prompt = append(prompt, model.SystemMessage(rephrasePreamble))
	prompt = append(prompt, messages[:len(messages)-1]...)
	return append(prompt, model.UserMessage(messages[len(messages)-1].Content))
}

func summarizePrompt(query string, docs []model.DocumentChunk) []model.ChatMessage {
	wrapped := make([]string, len(docs))
	for i := range docs {
		wrapped[i] = "<doc>" + docs[i].Text + "</doc>"
	}
	return []model.ChatMessage{
		model.SystemMessage(summarizeInstruction),
		model.UserMessage(fmt.Sprintf("Please summarize the following documents in relation to this question: %q\n\nDocuments:\n%s", query, strings.Join(wrapped, "\n\n"))),
	}
}

func generatePrompt(persona, query, summary string) []model.ChatMessage {
	if summary == "" {
		return []model.ChatMessage{
			model.SystemMessage(generalInstruction),
			model.UserMessage(query),
		}
	}
	return []model.ChatMessage{
		model.SystemMessage(persona),
		model.UserMessage("When answering me, use the following documents as context:\n<context>\n" + summary + "\n</context>"),
		model.AssistantMessage(contextAcknowledgement),
		model.UserMessage(query),
	}
}
