package matching

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/imadgeboyega/movienight-backend/internal/auth"
	"github.com/imadgeboyega/movienight-backend/internal/common/logging"
	"github.com/imadgeboyega/movienight-backend/internal/common/utils"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) FormGroups(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "id", "Invalid event ID")
	if !ok {
		return
	}

	var dto FormGroupsRequest
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil && !errors.Is(err, io.EOF) {
		utils.ErrorResponse(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(&dto); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.FormGroups(r.Context(), eventID, dto.GroupSize)
	if err != nil {
		h.handleError(w, err, "Failed to form groups")
		return
	}

	utils.SuccessResponse(w, result, http.StatusCreated)
}

func (h *Handler) GetEventGroups(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "id", "Invalid event ID")
	if !ok {
		return
	}

	groups, err := h.service.GetEventGroups(r.Context(), eventID)
	if err != nil {
		h.handleError(w, err, "Failed to get groups")
		return
	}

	utils.SuccessResponse(w, groups, http.StatusOK)
}

func (h *Handler) GetMyGroup(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())
	eventID, ok := pathID(w, r, "id", "Invalid event ID")
	if !ok {
		return
	}

	group, err := h.service.GetUserGroup(r.Context(), eventID, userID)
	if err != nil {
		h.handleError(w, err, "Failed to get group")
		return
	}

	utils.SuccessResponse(w, group, http.StatusOK)
}

func (h *Handler) GetCompatibility(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())
	otherID, ok := pathID(w, r, "userId", "Invalid user ID")
	if !ok {
		return
	}

	score, err := h.service.Compatibility(r.Context(), userID, otherID)
	if err != nil {
		h.handleError(w, err, "Failed to calculate compatibility")
		return
	}

	utils.SuccessResponse(w, CompatibilityResponse{
		UserID:      userID,
		OtherUserID: otherID,
		Score:       score,
	}, http.StatusOK)
}

func (h *Handler) GetPairRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())
	otherID, ok := pathID(w, r, "userId", "Invalid user ID")
	if !ok {
		return
	}

	movieIDs, err := h.service.RecommendForPair(r.Context(), userID, otherID)
	if err != nil {
		h.handleError(w, err, "Failed to get recommendations")
		return
	}

	utils.SuccessResponse(w, PairRecommendationsResponse{
		UserID:      userID,
		OtherUserID: otherID,
		MovieIDs:    movieIDs,
	}, http.StatusOK)
}

func (h *Handler) handleError(w http.ResponseWriter, err error, fallback string) {
	var insufficient *InsufficientParticipantsError

	switch {
	case errors.As(err, &insufficient):
		utils.ErrorResponseWithDetails(w, ErrInsufficientParticipants.Error(), insufficient, http.StatusUnprocessableEntity)
	case errors.Is(err, ErrEventNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrGroupNotFound):
		utils.ErrorResponse(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrAlreadyMatched):
		utils.ErrorResponse(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrInvalidGroupSize),
		errors.Is(err, ErrDuplicateParticipant):
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrRecommendationUnavailable):
		utils.ErrorResponse(w, ErrRecommendationUnavailable.Error(), http.StatusServiceUnavailable)
	default:
		logging.Error().Err(err).Msg(fallback)
		utils.ErrorResponse(w, fallback, http.StatusInternalServerError)
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name, message string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		utils.ErrorResponse(w, message, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
