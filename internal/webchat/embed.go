// ABOUTME: Embeds the chat page template and stylesheet into the binary using go:embed
// ABOUTME: Provides templateFS and staticFS for loading them at runtime

package webchat

import "embed"

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*.css
var staticFS embed.FS
