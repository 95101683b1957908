package dto

type CreatePostRequest struct {
	Content  string `json:"content" binding:"required"`
	ImageURL string `json:"image_url"`
	LinkURL  string `json:"link_url"`
}

type PublishRequest struct {
	PostID    string   `json:"post_id" binding:"required"`
	Platforms []string `json:"platforms" binding:"required"`
}

type PublishResultItem struct {
	Platform string `json:"platform"`
	Outcome  string `json:"outcome"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type PublishResponse struct {
	PostID  string              `json:"post_id"`
	Results []PublishResultItem `json:"results"`
}
