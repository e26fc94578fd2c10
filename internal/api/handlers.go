package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"mkobal/avtowatch/internal/model"
	"mkobal/avtowatch/services/store"
)

// userPayload is the request body for register and update. Pointer
// fields distinguish "omitted" from a zero value on update.
type userPayload struct {
	UserID             string            `json:"user_id"`
	PushoverAPIToken   string            `json:"pushover_api_token"`
	PushoverUserKey    string            `json:"pushover_user_key"`
	Filters            *model.FilterSpec `json:"filters"`
	NotifyOnFirstCycle *bool             `json:"notify_on_first_cycle"`
}

// userResponse is the public view of a user. Credentials never leave
// the store through the API.
type userResponse struct {
	UserID             string           `json:"user_id"`
	Filters            model.FilterSpec `json:"filters"`
	NotifyOnFirstCycle bool             `json:"notify_on_first_cycle"`
	Seeded             bool             `json:"seeded"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		UserID:             u.UserID,
		Filters:            u.Filters,
		NotifyOnFirstCycle: u.NotifyOnFirstCycle,
		Seeded:             u.Seeded,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload userPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if payload.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if payload.PushoverAPIToken == "" || payload.PushoverUserKey == "" {
		writeError(w, http.StatusBadRequest, "pushover_api_token and pushover_user_key are required")
		return
	}

	var filters model.FilterSpec
	if payload.Filters != nil {
		filters = *payload.Filters
	}
	filters.Normalize()
	if err := filters.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if _, err := s.store.GetUser(ctx, payload.UserID); err == nil {
		writeError(w, http.StatusConflict, "user already registered")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		s.log.Error().Err(err).Str("user_id", payload.UserID).Msg("User lookup failed")
		writeError(w, http.StatusInternalServerError, "user lookup failed")
		return
	}

	user := &model.User{
		UserID: payload.UserID,
		Credentials: model.Credentials{
			APIToken: payload.PushoverAPIToken,
			UserKey:  payload.PushoverUserKey,
		},
		Filters: filters,
	}
	if payload.NotifyOnFirstCycle != nil {
		user.NotifyOnFirstCycle = *payload.NotifyOnFirstCycle
	}

	outcome, err := s.store.UpsertUser(ctx, user)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", payload.UserID).Msg("Register failed")
		writeError(w, http.StatusInternalServerError, "saving user failed")
		return
	}

	s.log.Info().
		Str("user_id", payload.UserID).
		Bool("reactivated", outcome.Reactivated).
		Msg("User registered")
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"status":      "registered",
		"user_id":     payload.UserID,
		"reactivated": outcome.Reactivated,
	})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUser(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "user lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	var payload userPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx := r.Context()
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "user lookup failed")
		return
	}

	if payload.PushoverAPIToken != "" {
		user.Credentials.APIToken = payload.PushoverAPIToken
	}
	if payload.PushoverUserKey != "" {
		user.Credentials.UserKey = payload.PushoverUserKey
	}
	if payload.Filters != nil {
		filters := *payload.Filters
		filters.Normalize()
		if err := filters.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		user.Filters = filters
	}
	if payload.NotifyOnFirstCycle != nil {
		user.NotifyOnFirstCycle = *payload.NotifyOnFirstCycle
	}

	outcome, err := s.store.UpsertUser(ctx, user)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Update failed")
		writeError(w, http.StatusInternalServerError, "saving user failed")
		return
	}

	s.log.Info().
		Str("user_id", userID).
		Bool("filters_changed", outcome.FiltersChanged).
		Msg("User updated")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "updated",
		"user_id":         userID,
		"filters_changed": outcome.FiltersChanged,
	})
}

func (s *Server) handleDeactivateUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	err := s.store.DeactivateUser(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Deactivate failed")
		writeError(w, http.StatusInternalServerError, "deactivating user failed")
		return
	}

	s.log.Info().Str("user_id", userID).Msg("User deactivated")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "deactivated",
		"user_id": userID,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ActiveUsers(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "degraded",
			"error":  "database unavailable",
		})
		return
	}

	resp := map[string]interface{}{
		"status":       "ok",
		"active_users": len(users),
	}
	if s.reporter != nil {
		if report := s.reporter.LastReport(); report != nil {
			resp["last_cycle"] = report
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// testListing is the canned ad used to verify a user's push channel
// end to end without waiting for a real match.
func testListing() model.Listing {
	l := model.Listing{
		URL:          "https://www.avto.net/",
		Title:        "Test Car - Notification Test",
		Price:        "15000",
		Registration: "2020",
		Mileage:      "50000",
		Transmission: "Avtomatski",
		Engine:       "2.0 TDI, 110kW",
		Owners:       "1",
	}
	l.Hash = model.HashListing(l.Title, l.Price, l.Registration)
	return l
}

func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	user, err := s.store.GetUser(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "user lookup failed")
		return
	}

	res, err := s.dispatcher.Dispatch(r.Context(), userID, user.Credentials, []model.Listing{testListing()})
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("Test notification failed")
		writeError(w, http.StatusInternalServerError, "test notification failed: "+err.Error())
		return
	}
	if res.Sent == 0 {
		writeError(w, http.StatusInternalServerError, "test notification failed")
		return
	}

	s.log.Info().Str("user_id", userID).Msg("Test notification sent")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "sent",
		"user_id": userID,
	})
}
