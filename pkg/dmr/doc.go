// Package dmr is a client for the Docker Model Runner HTTP API.
//
// The runner hosts local models behind an OpenAI-compatible endpoint plus a
// small management API for pulling models. This client covers the subset the
// companion needs: listing and creating models, waiting for the runner and
// its models to become ready, and the two chat-completion calls the capture
// pipeline makes (audio transcription and render decisions).
//
// Local inference can take minutes on first load, so chat requests carry no
// client-side timeout; callers bound them with a context when needed.
package dmr
