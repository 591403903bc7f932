package application

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bnema/nearby-cli/internal/domain"
)

const (
	pathMyProfile     = "me/profile"
	pathMyImages      = "me/images"
	pathPrimaryImage  = "me/images/primary"
	pathMyLocation    = "me/location"
	pathMyViews       = "me/views"
	pathMySettings    = "me/settings"
	pathRewardedChats = "me/rewarded-chats"
	pathNearby        = "profiles/nearby"
	pathProfiles      = "profiles"
	pathMessages      = "messages"
	pathConversations = "conversations"
	pathTyping        = "typing"
	pathTaps          = "taps"
	pathSentTaps      = "taps/sent"
	pathReceivedTaps  = "taps/received"
	pathFavorites     = "favorites"
)

type imagesEnvelope struct {
	Images []domain.ProfileImage `json:"images"`
}

type uploadResponse struct {
	Hash string `json:"hash"`
}

type nearbyEnvelope struct {
	Profiles []domain.NearbyProfile `json:"profiles"`
}

type messagesEnvelope struct {
	Messages []domain.Message `json:"messages"`
}

type conversationsEnvelope struct {
	Conversations []domain.Conversation `json:"conversations"`
}

type tapsEnvelope struct {
	Taps []domain.TapInteraction `json:"taps"`
}

type sendMessageBody struct {
	TargetID domain.ProfileID `json:"target_id"`
	Text     string           `json:"text"`
}

type typingBody struct {
	TargetID domain.ProfileID `json:"target_id"`
	Typing   bool             `json:"typing"`
}

type readReceiptBody struct {
	MessageID string `json:"message_id"`
}

type tapBody struct {
	TargetID domain.ProfileID `json:"target_id"`
	TapType  domain.TapType   `json:"tap_type"`
}

type primaryImageBody struct {
	Hash string `json:"hash"`
}

func getRequest(path string, query url.Values) domain.Request {
	return domain.Request{Method: http.MethodGet, Path: path, Query: query}
}

func deleteRequest(path string) domain.Request {
	return domain.Request{Method: http.MethodDelete, Path: path}
}

func jsonRequest(method, path string, body any) (domain.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return domain.Request{}, fmt.Errorf("encode %s body: %w", path, err)
	}
	return domain.Request{
		Method:      method,
		Path:        path,
		Body:        payload,
		ContentType: "application/json",
	}, nil
}

func profilePath(id domain.ProfileID) string {
	return pathProfiles + "/" + strconv.FormatInt(int64(id), 10)
}

func favoritePath(id domain.ProfileID) string {
	return pathFavorites + "/" + strconv.FormatInt(int64(id), 10)
}

func imagePath(hash string) string {
	return pathMyImages + "/" + url.PathEscape(hash)
}

func conversationPath(conversationID, suffix string) string {
	return pathConversations + "/" + url.PathEscape(conversationID) + "/" + suffix
}

func nearbyQuery(q NearbyQuery, location *domain.Location) url.Values {
	values := url.Values{}
	values.Set("distance", strconv.Itoa(q.DistanceLimit))
	values.Set("limit", strconv.Itoa(q.Limit))
	if q.OnlineOnly {
		values.Set("online", "true")
	}
	if q.FavoritesOnly {
		values.Set("favorites", "true")
	}
	if location != nil {
		values.Set("lat", strconv.FormatFloat(location.Latitude, 'f', 6, 64))
		values.Set("lon", strconv.FormatFloat(location.Longitude, 'f', 6, 64))
	}
	return values
}

func decodePayload[T any](outcome domain.CallOutcome, what string) (T, error) {
	var out T
	if err := outcome.Err(); err != nil {
		return out, fmt.Errorf("%s: %w", what, err)
	}
	if len(outcome.Payload) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(outcome.Payload, &out); err != nil {
		return out, fmt.Errorf("%s: decode response: %w", what, err)
	}
	return out, nil
}
