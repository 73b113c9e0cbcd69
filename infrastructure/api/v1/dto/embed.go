// Package dto holds the request and response bodies of the v1 API.
package dto

// EmbedRequest is the body of POST /embed.
type EmbedRequest struct {
	Text string `json:"text" example:"今日はいい天気です"`
}

// EmbedResponse is the result of POST /embed.
type EmbedResponse struct {
	Dim       int       `json:"dim" example:"768"`
	Embedding []float64 `json:"embedding"`
}

// NewEmbedResponse builds a response whose dim always matches the vector length.
func NewEmbedResponse(embedding []float64) EmbedResponse {
	if embedding == nil {
		embedding = []float64{}
	}
	return EmbedResponse{
		Dim:       len(embedding),
		Embedding: embedding,
	}
}
