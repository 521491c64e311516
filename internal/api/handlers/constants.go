package handlers

const (
	// Service banner
	serviceName        = "BeatForge AI"
	serviceDescription = "AI electronic music workstation: text prompt in, WAV clip out"
	apiPrefix          = "/api"

	// Audio downloads
	downloadPrefix = "/api/audio/"
	wavContentType = "audio/wav"

	// Generation response messages
	msgGenerated        = "Audio generated successfully"
	msgGenerationFailed = "Generation failed: "
)

// downloadURL returns the public path a stored clip is served from.
func downloadURL(filename string) string {
	return downloadPrefix + filename
}
