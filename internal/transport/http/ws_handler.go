package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"sync"

	"quiz-portal/internal/app"
	"quiz-portal/internal/domain"
	"github.com/gin-gonic/gin"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	OptionID int64 `json:"option_id"`
}

type positionPayload struct {
	Position int `json:"position"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type redirectPayload struct {
	Location string `json:"location"`
}

type resultPayload struct {
	Score    int             `json:"score"`
	Total    int             `json:"total"`
	Answers  []domain.Answer `json:"answers"`
	Location string          `json:"location"`
}

// serveLive upgrades the quiz page's connection and mounts one Controller
// for its lifetime.
func (h *Handler) serveLive(c *gin.Context) {
	slug := c.Param("slug")
	client := h.apiFor(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancelCtx := context.WithCancel(c.Request.Context())
	defer cancelCtx()

	ctrl := app.NewController(client, slug, h.controllerOpts...)
	defer ctrl.Close()

	updates, cancel := ctrl.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	emit := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-closeSignals:
			return false
		}
	}
	sendError := func(message string) {
		emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}})
	}

	// A rejected credential ends the page: wipe it and send the browser to
	// the login page once.
	var redirectOnce sync.Once
	unauthorized := func() {
		redirectOnce.Do(func() {
			h.signOut(c)
			emit(outboundMessage[any]{Type: "redirect", Payload: redirectPayload{Location: app.LoginPath}})
			cancelCtx()
		})
	}

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		resultSent := false
		for {
			select {
			case state, ok := <-updates:
				if !ok {
					return
				}
				if errors.Is(state.Err, domain.ErrUnauthorized) {
					unauthorized()
					return
				}
				if !emit(outboundMessage[any]{Type: "state", Payload: state}) {
					return
				}
				if state.Phase == app.PhaseFinished && !resultSent {
					resultSent = true
					h.sendResult(ctx, ctrl, slug, emit, unauthorized)
				}
			case <-closeSignals:
				return
			}
		}
	}()

	if err := ctrl.Start(ctx); err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			unauthorized()
		} else if !errors.Is(err, domain.ErrControllerClosed) {
			log.Printf("quiz %s: start failed: %v", slug, err)
			sendError(startMessage(err))
		}
	}

	for ctx.Err() == nil {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		err := h.dispatch(ctx, ctrl, inbound)
		switch {
		case err == nil, errors.Is(err, domain.ErrControllerClosed), errors.Is(err, context.Canceled):
		case errors.Is(err, domain.ErrUnauthorized):
			unauthorized()
		case errors.Is(err, domain.ErrNoSelection):
			sendError("Select an option first.")
		case errors.Is(err, domain.ErrOptionNotFound):
			sendError("That option is not part of this question.")
		case errors.Is(err, errBadMessage):
			sendError(err.Error())
		default:
			log.Printf("quiz %s: %s failed: %v", slug, inbound.Type, err)
			sendError("The quiz service is unavailable. Please try again.")
		}
	}

	ctrl.Close()
	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

var errBadMessage = errors.New("unsupported message")

func (h *Handler) dispatch(ctx context.Context, ctrl *app.Controller, inbound inboundMessage) error {
	switch inbound.Type {
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errBadMessage
		}
		return ctrl.Select(payload.OptionID)
	case "submit":
		return ctrl.Submit(ctx)
	case "forfeit":
		return ctrl.Forfeit(ctx)
	case "hidden", "blur":
		var payload positionPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errBadMessage
		}
		return ctrl.PageHidden(ctx, payload.Position)
	default:
		return errBadMessage
	}
}

func (h *Handler) sendResult(ctx context.Context, ctrl *app.Controller, slug string, emit func(outboundMessage[any]) bool, unauthorized func()) {
	attempt, err := ctrl.Result(ctx)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			unauthorized()
		case errors.Is(err, domain.ErrControllerClosed), errors.Is(err, context.Canceled):
		default:
			log.Printf("quiz %s: load result: %v", slug, err)
			emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "Could not load your result."}})
		}
		return
	}
	emit(outboundMessage[any]{Type: "result", Payload: resultPayload{
		Score:    attempt.Score,
		Total:    attempt.Total,
		Answers:  attempt.Answers,
		Location: "/quiz/" + url.PathEscape(slug) + "/result",
	}})
}

func startMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoQuizAvailable):
		return "No quiz available."
	case errors.Is(err, domain.ErrNotFound):
		return "This quiz does not exist."
	default:
		return "Could not start the quiz. Please try again later."
	}
}
