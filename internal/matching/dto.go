// internal/matching/dto.go
package matching

// DTOs for API requests/responses

type FormGroupsRequest struct {
	GroupSize int `json:"group_size,omitempty" validate:"omitempty,min=2,max=20"`
}

type CompatibilityResponse struct {
	UserID      int64   `json:"user_id"`
	OtherUserID int64   `json:"other_user_id"`
	Score       float64 `json:"score"`
}

type PairRecommendationsResponse struct {
	UserID      int64 `json:"user_id"`
	OtherUserID int64 `json:"other_user_id"`
	MovieIDs    []int `json:"movie_ids"`
}
