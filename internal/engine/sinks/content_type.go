package sinks

import "path"

// ContentTypeFromPath guesses a MIME type from the extension of p.
// It returns "" when the extension is unknown.
func ContentTypeFromPath(p string) string {
	switch path.Ext(p) {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/x-yaml"
	case ".xml":
		return "application/xml"
	case ".txt":
		return "text/plain"
	case ".csv":
		return "text/csv"
	case ".zip":
		return "application/zip"
	case ".p7m", ".cms":
		return "application/pkcs7-mime"
	case ".encrypted":
		return "application/octet-stream"
	default:
		return ""
	}
}
