package domain

// PlaceholderImage is shown when a product has no usable image.
const PlaceholderImage = "data:image/svg+xml;base64,PHN2ZyB3aWR0aD0iMTUwIiBoZWlnaHQ9IjE1MCIgdmlld0JveD0iMCAwIDE1MCAxNTAiIGZpbGw9Im5vbmUiIHhtbG5zPSJodHRwOi8vd3d3LnczLm9yZy8yMDAwL3N2ZyI+CjxyZWN0IHdpZHRoPSIxNTAiIGhlaWdodD0iMTUwIiBmaWxsPSIjRjVGNUY1Ii8+Cjx0ZXh0IHg9Ijc1IiB5PSI3NSIgZm9udC1mYW1pbHk9IkFyaWFsIiBmb250LXNpemU9IjE0IiBmaWxsPSIjOTk5OTk5IiB0ZXh0LWFuY2hvcj0ibWlkZGxlIj5ObyBJbWFnZTwvdGV4dD4KPC9zdmc+"

// ImageURL returns the first image's thumbnail, then its full URL, then the
// placeholder.
func (p Product) ImageURL() string {
	if len(p.Images) > 0 {
		if u := p.Images[0].ThumbnailURL; u != "" {
			return u
		}
		if u := p.Images[0].URL; u != "" {
			return u
		}
	}
	return PlaceholderImage
}
