package validation

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxFileSize is the upload limit for documents and Mulkiya scans
const MaxFileSize int64 = 10 * 1024 * 1024

const acceptedTypes = "PDF, JPEG, PNG, DOC, DOCX, XLS, XLSX"

// allowedFileTypes maps accepted extensions to their MIME types
var allowedFileTypes = map[string][]string{
	".pdf":  {"application/pdf"},
	".jpg":  {"image/jpeg", "image/jpg", "image/pjpeg"},
	".jpeg": {"image/jpeg", "image/jpg", "image/pjpeg"},
	".png":  {"image/png"},
	".doc":  {"application/msword", "application/x-ole-storage"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
	".xls":  {"application/vnd.ms-excel", "application/x-ole-storage"},
	".xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "application/zip"},
}

// CheckFile validates the name, declared content type and size of an upload
func CheckFile(fileName, contentType string, size int64) Violations {
	var out Violations
	ext := strings.ToLower(filepath.Ext(fileName))
	mimes, ok := allowedFileTypes[ext]
	if !ok {
		shown := ext
		if shown == "" {
			shown = "without extension"
		}
		out = append(out, fileViolation("file_type",
			fmt.Sprintf("File type %s is not allowed. Accepted types: %s", shown, acceptedTypes)))
	} else if ct := baseMediaType(contentType); ct != "" && ct != "application/octet-stream" && !contains(mimes, ct) {
		out = append(out, fileViolation("file_type",
			fmt.Sprintf("Content type %s does not match a %s file", ct, strings.TrimPrefix(ext, "."))))
	}

	switch {
	case size <= 0:
		out = append(out, fileViolation("file_size", "File is empty"))
	case size > MaxFileSize:
		out = append(out, fileViolation("file_size",
			fmt.Sprintf("File size %.1f MB exceeds the 10 MB limit", float64(size)/(1024*1024))))
	}
	return out
}

// CheckFileContent runs CheckFile and then sniffs the bytes so a renamed
// executable or archive is rejected even with an accepted extension.
func CheckFileContent(fileName, contentType string, data []byte) Violations {
	out := CheckFile(fileName, contentType, int64(len(data)))
	if len(out) > 0 {
		return out
	}

	mimes := allowedFileTypes[strings.ToLower(filepath.Ext(fileName))]
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if contains(mimes, m.String()) {
			return nil
		}
	}
	return Violations{fileViolation("file_content",
		fmt.Sprintf("File content does not match its %s extension", filepath.Ext(fileName)))}
}

// DetectContentType reports the sniffed MIME type of data
func DetectContentType(data []byte) string {
	return mimetype.Detect(data).String()
}

func fileViolation(rule, message string) Violation {
	return Violation{Path: []string{"file"}, Message: message, Rule: rule}
}

func baseMediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
