// Package textutil provides filename sanitization and capture title helpers.
//
// Session titles name directories and files under the temp session root, so
// they must be filesystem-safe; SanitizeFileName covers that. DeriveTitle
// turns an ingested file path into a presentable title.
package textutil
