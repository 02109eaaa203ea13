package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"skymessage/internal/pkg/auth/jwt"
	"skymessage/internal/pkg/errs"
	"skymessage/internal/pkg/logx"
	"skymessage/internal/pkg/req"
	"skymessage/internal/pkg/resp"
)

type CreateChatInput struct {
	// Name is the display name of the chat; optional.
	Name string `json:"name,omitempty"`

	// MemberIDs are the other participants. The creator is always added.
	MemberIDs []string `json:"memberIds"`
}

// HandleCreateChat creates a chat with its membership bootstrap and
// notifies connected members over the live channel.
func HandleCreateChat(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input CreateChatInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if len(input.MemberIDs) == 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		memberIDs := append([]string{identity.ID}, input.MemberIDs...)

		chatID, err := deps.Store.CreateChat(r.Context(), input.Name, memberIDs)
		if err != nil {
			logx.Error(err, "Failed to create chat", "creator_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		deps.Dispatcher.NotifyNewChat(r.Context(), chatID, input.Name)

		resp.RespondSuccess(w, r, map[string]any{
			"chatId": chatID,
		})
	}
}

// HandleListChats returns the authenticated user's chats with their
// latest message text.
func HandleListChats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		chats, err := deps.Store.ListChatsFor(r.Context(), identity.ID)
		if err != nil {
			logx.Error(err, "Failed to list chats", "user_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, chats)
	}
}

// HandleListMessages returns a chat's history in persistence order.
// Membership is checked on every call; being subscribed to the room is
// irrelevant here.
func HandleListMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		exists, err := deps.Store.ChatExists(r.Context(), chatID)
		if err != nil {
			logx.Error(err, "Chat lookup failed", "chat_id", chatID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		if !exists {
			resp.RespondError(w, r, errs.NewError(errs.ErrChatNotFound))
			return
		}

		member, err := deps.Store.IsMember(r.Context(), identity.ID, chatID)
		if err != nil {
			logx.Error(err, "Membership lookup failed", "chat_id", chatID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		if !member {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotChatMember))
			return
		}

		messages, err := deps.Store.ListMessages(r.Context(), chatID)
		if err != nil {
			logx.Error(err, "Failed to list messages", "chat_id", chatID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, messages)
	}
}
