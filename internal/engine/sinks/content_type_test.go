package sinks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentTypeFromPath(t *testing.T) {
	tests := map[string]string{
		"info.json":            "application/json",
		"config.yml":           "application/x-yaml",
		"notes.txt":            "text/plain",
		"steps.csv":            "text/csv",
		"bundle.zip":           "application/zip",
		"bundle.zip.encrypted": "application/octet-stream",
		"bundle.cms":           "application/pkcs7-mime",
		"data.bin":             "",
		"data":                 "",
	}

	for path, want := range tests {
		t.Run(path, func(t *testing.T) {
			assert.Equal(t, want, ContentTypeFromPath(path))
		})
	}
}
