// Package contextual answers chat messages that may or may not carry their
// own background context.
//
// Every message goes through an explicit Resolution Policy instead of a
// free-form tool-calling loop:
//
//  1. A classifier model judges whether the message contains context
//     besides its question (ClassifyPresence).
//  2. If it does not, the SearchProvider is queried with the message and
//     the top result becomes the context.
//  3. If it does, a second judgment decides whether that context is
//     relevant to the question (ClassifyRelevance). Relevant input is split
//     into context and question (Split); irrelevant input has its question
//     portion searched on the web instead.
//  4. The finalizer model answers the resolved context/question pair.
//
// Each step is recorded in a Trace, and failures come back as *Error values
// whose Kind tells client mistakes, unreachable or slow collaborators and
// unparseable model output apart.
//
// # Basic Usage
//
//	agent := contextual.New(
//	    contextual.WithModel(myLLM),
//	    contextual.WithSearchProvider(search.NewDuckDuckGo()),
//	    contextual.WithGatewayTimeout(20*time.Second),
//	)
//
//	result, err := agent.Answer(ctx, "Python is a programming language. What are attention mechanisms?")
//	fmt.Println(result.Answer)
//	fmt.Println(result.Trace.Snapshot())
//
// # Interfaces
//
// Implement LLMProvider to connect any language model:
//
//	type LLMProvider interface {
//	    Generate(ctx context.Context, systemPrompt, userPrompt string) (LLMResponse, error)
//	}
//
// Implement SearchProvider to use any search backend:
//
//	type SearchProvider interface {
//	    Search(ctx context.Context, query string) ([]SearchResult, error)
//	}
//
// Ready-made providers live in the llm and search subpackages, and the
// prompt wording lives in the prompts subpackage.
package contextual
