// Package imagemeta decodes image dimensions and embedded EXIF attributes.
//
// DecodeBounds is a config-only decode: it never materializes pixel data,
// which keeps background finalization cheap for large captures. Extract is
// best-effort by contract; finalization proceeds with empty metadata when
// EXIF parsing fails.
package imagemeta
