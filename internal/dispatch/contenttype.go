package dispatch

import "strings"

// extensionContentTypes is a small, deliberately non-exhaustive table of
// file extensions to MIME types. An unknown or absent extension yields no
// Content-Type header rather than a fabricated "application/octet-stream".
var extensionContentTypes = map[string]string{
	".txt":  "text/plain",
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".csv":  "text/csv",
	".json": "application/json",
	".xml":  "application/xml",
	".js":   "application/javascript",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tar":  "application/x-tar",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
}

// inferContentType returns a best-effort MIME type for key's extension,
// or "" if the extension is unknown or absent.
func inferContentType(key string) string {
	idx := strings.LastIndexByte(key, '.')
	if idx < 0 || idx == len(key)-1 {
		return ""
	}
	return extensionContentTypes[strings.ToLower(key[idx:])]
}
