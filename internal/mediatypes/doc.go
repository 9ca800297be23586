// Package mediatypes classifies files by extension into the media types
// the curator can index (images and videos) and resolves their MIME types.
package mediatypes
