// Package classifier asks an OpenAI-compatible chat completion endpoint to
// identify a document's type, vendor, model and taxonomy placement.
//
// Requests pass through a shared RateGate and retry only on HTTP 429 and
// connection failures. Answers the model garbles degrade to FallbackResult
// rather than failing, so every readable response produces a draft.
package classifier
