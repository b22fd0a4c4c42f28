package rag

import (
	"fmt"
	"strings"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
	"github.com/Aman-CERP/hoopla/internal/search"
)

const audience = "This should be tailored to Hoopla users. Hoopla is a movie streaming service."

const answerPrompt = `Answer the question or provide information based on the provided documents. %s

Query: %s

Documents:
%s
Provide a comprehensive answer that addresses the query:`

const summarizePrompt = `Provide information useful to this query by synthesizing information from multiple search results in detail.
The goal is to provide comprehensive information so that users know what their options are.
Your response should be information-dense and concise, with several key pieces of information about the genre, plot, etc. of each movie.
%s

Query: %s

Search Results:
%s
Provide a comprehensive 3-4 sentence answer that combines information from multiple sources:`

const citationsPrompt = `Answer the question or provide information based on the provided documents.
%s

If not enough information is available to give a good answer, say so but give as good of an answer as you can while citing the sources you have.

Query: %s

Documents:
%s
Instructions:
- Provide a comprehensive answer that addresses the query
- Cite sources using [1], [2], etc. format when referencing information
- If sources disagree, mention the different viewpoints
- If the answer isn't in the documents, say "I don't have enough information"
- Be direct and informative

Answer:`

const questionPrompt = `Answer the user's question based on the provided movies that are available on Hoopla.
%s

Question: %s

Documents:
%s
Instructions:
- Answer questions directly and concisely
- Be casual and conversational
- Don't be cringe or hype-y
- Talk like a normal person would in a chat conversation

Answer:`

// BuildPrompt renders the prompt for mode over the retrieved documents.
func BuildPrompt(mode Mode, query string, docs []*search.SearchResult) (string, error) {
	switch mode {
	case ModeAnswer:
		return fmt.Sprintf(answerPrompt, audience, query, formatDocuments(docs, false)), nil
	case ModeSummarize:
		return fmt.Sprintf(summarizePrompt, audience, query, formatDocuments(docs, false)), nil
	case ModeCitations:
		return fmt.Sprintf(citationsPrompt, audience, query, formatDocuments(docs, true)), nil
	case ModeQuestion:
		return fmt.Sprintf(questionPrompt, audience, query, formatDocuments(docs, false)), nil
	default:
		return "", herrors.New(herrors.ErrCodeInvalidStrategy,
			fmt.Sprintf("unknown rag mode %q", mode), nil)
	}
}

// formatDocuments lists one document per block; numbered blocks are what
// citation markers refer to.
func formatDocuments(docs []*search.SearchResult, numbered bool) string {
	var b strings.Builder
	for i, d := range docs {
		if numbered {
			fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, d.Title, d.Document)
		} else {
			fmt.Fprintf(&b, "- %s: %s\n", d.Title, d.Document)
		}
	}
	return b.String()
}
