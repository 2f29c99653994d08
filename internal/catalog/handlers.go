package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/imadgeboyega/movienight-backend/internal/auth"
	"github.com/imadgeboyega/movienight-backend/internal/common/logging"
	"github.com/imadgeboyega/movienight-backend/internal/common/utils"
)

// Handler serves the local movie cache
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts the catalog endpoints behind authentication
func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware) {
	router.Handle("/api/v1/movies/{id:[0-9]+}",
		authMiddleware.Authenticate(http.HandlerFunc(handler.GetMovie))).Methods("GET")
}

// GetMovie returns a cached movie. Only movies the engine has suggested or
// users have rated are cached; anything else is a 404.
func (h *Handler) GetMovie(w http.ResponseWriter, r *http.Request) {
	movieID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || movieID <= 0 {
		utils.ErrorResponse(w, "Invalid movie ID", http.StatusBadRequest)
		return
	}

	movie, err := h.store.GetMovie(r.Context(), movieID)
	if errors.Is(err, ErrMovieNotFound) {
		utils.ErrorResponse(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error().Err(err).Int("movie_id", movieID).Msg("failed to get movie")
		utils.ErrorResponse(w, "Failed to get movie", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, movie, http.StatusOK)
}
