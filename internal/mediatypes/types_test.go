package mediatypes

import "testing"

func TestGetMediaType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext  string
		want MediaType
	}{
		{".jpg", MediaTypeImage},
		{".jpeg", MediaTypeImage},
		{".png", MediaTypeImage},
		{".webp", MediaTypeImage},
		{".bmp", MediaTypeImage},
		{".mp4", MediaTypeVideo},
		{".mkv", MediaTypeVideo},
		{".mov", MediaTypeVideo},
		{".avi", MediaTypeVideo},
		{".webm", MediaTypeVideo},
		{".txt", MediaTypeOther},
		{".exe", MediaTypeOther},
		{"", MediaTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			t.Parallel()
			if got := GetMediaType(tt.ext); got != tt.want {
				t.Errorf("GetMediaType(%q) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestGetMimeType(t *testing.T) {
	t.Parallel()

	if got := GetMimeType(".jpg"); got != "image/jpeg" {
		t.Errorf("GetMimeType(.jpg) = %q, want image/jpeg", got)
	}
	if got := GetMimeType(".mp4"); got != "video/mp4" {
		t.Errorf("GetMimeType(.mp4) = %q, want video/mp4", got)
	}
	if got := GetMimeType(".unknown"); got != "application/octet-stream" {
		t.Errorf("GetMimeType(.unknown) = %q, want application/octet-stream", got)
	}
}

func TestIsIndexable(t *testing.T) {
	t.Parallel()

	if !IsIndexable(".png") {
		t.Error("IsIndexable(.png) = false, want true")
	}
	if !IsIndexable(".webm") {
		t.Error("IsIndexable(.webm) = false, want true")
	}
	if IsIndexable(".pdf") {
		t.Error("IsIndexable(.pdf) = true, want false")
	}
}
