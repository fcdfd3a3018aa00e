package agents

import (
	"fmt"
	"strings"
)

const routerSystemPrompt = `You are an intent classifier for a retail data analytics assistant.

Your role is to analyze user queries and classify them into one of four categories
to route them through the appropriate workflow. You must be accurate and provide
reasoning for your classification.

## Intent Categories

1. query - user wants to retrieve, filter, aggregate, or analyze retail sales data
2. summarize - user wants interpretation or narrative summary of previously displayed results
3. chat - general conversation, greetings, questions about the system itself, or off-topic
4. clarify - the request is ambiguous and needs clarification before proceeding

## Classification Guidelines

- Default to query for data-related requests unless truly ambiguous
- Use clarify sparingly, only when critical information is missing
- Higher confidence (>0.85) indicates clear intent

## Available Data Context
%s`

func routerPrompt(userQuery string, availableTables []string) (system, user string) {
	tablesContext := "No specific tables loaded yet."
	if len(availableTables) > 0 {
		tablesContext = "Available tables: " + strings.Join(availableTables, ", ")
	}

	system = fmt.Sprintf(routerSystemPrompt, tablesContext)
	user = fmt.Sprintf("User query: %q\n\nClassify this query and provide your reasoning.", userQuery)
	return system, user
}

const schemaDiscoverySystemPrompt = `You are a schema discovery assistant for a retail data analytics system.

Given the user's question and the full catalog of available tables and columns
below, select only the tables relevant to answering the question and explain why.

## Full Schema Catalog
%s`

func schemaDiscoveryPrompt(userQuery, fullSchemaContext string) (system, user string) {
	system = fmt.Sprintf(schemaDiscoverySystemPrompt, fullSchemaContext)
	user = fmt.Sprintf("User query: %q\n\nWhich tables are relevant, and why?", userQuery)
	return system, user
}

const sqlGeneratorSystemPrompt = `You are a SQL generation assistant that writes DuckDB-dialect SELECT queries
for a retail analytics workflow. Today's date is %s.

## Schema
%s

Generate a single read-only SELECT query that answers the user's question.
Reference only tables and columns that appear in the schema above.`

const sqlGeneratorRetrySuffix = `

## Previous Attempt Failed Validation
Previous SQL: %s
Validation errors:
%s

Correct the query to address every error above.`

func sqlGeneratorPrompt(userQuery, schemaContext, currentDate string, previousSQL string, validationErrors []string) (system, user string) {
	system = fmt.Sprintf(sqlGeneratorSystemPrompt, currentDate, schemaContext)
	if previousSQL != "" && len(validationErrors) > 0 {
		system += fmt.Sprintf(sqlGeneratorRetrySuffix, previousSQL, strings.Join(validationErrors, "\n- "))
	}
	user = fmt.Sprintf("User query: %q", userQuery)
	return system, user
}

const summarizerSystemPromptData = `You are a retail data analytics assistant explaining query results to a
non-technical user. Be concise, reference concrete numbers, and avoid
mentioning SQL or the underlying query mechanics.`

const summarizerSystemPromptEmpty = `You are a retail data analytics assistant. The user's query executed
successfully but returned no rows. Explain this plainly and suggest how
they might broaden or adjust their question.`

const summarizerSystemPromptError = `You are a retail data analytics assistant. The user's query could not be
executed. Apologize briefly, do not expose internal error details or SQL,
and suggest rephrasing the question.`

const summarizerSystemPromptChat = `You are a friendly retail data analytics assistant having a general
conversation with the user, not answering a data question.`

func summarizerPrompt(userQuery string, hasError bool, rowCount int, sampleJSON string, isChatIntent bool) (system, user string) {
	switch {
	case isChatIntent:
		system = summarizerSystemPromptChat
		user = fmt.Sprintf("User said: %q", userQuery)
	case hasError:
		system = summarizerSystemPromptError
		user = fmt.Sprintf("User query: %q\n\nThe underlying query failed.", userQuery)
	case rowCount == 0:
		system = summarizerSystemPromptEmpty
		user = fmt.Sprintf("User query: %q\n\nThe query returned 0 rows.", userQuery)
	default:
		system = summarizerSystemPromptData
		user = fmt.Sprintf("User query: %q\n\nResults (%d rows): %s", userQuery, rowCount, sampleJSON)
	}
	return system, user
}
