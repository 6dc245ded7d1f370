package telegram

import (
	"testing"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"
	tb "gopkg.in/telebot.v3"

	"github.com/Laisky/filestream/internal/ingest"
	"github.com/Laisky/filestream/library/log"
)

// callbackContext records callback answers. Other tb.Context methods are not used.
type callbackContext struct {
	tb.Context
	callback  *tb.Callback
	responses []*tb.CallbackResponse
}

func (c *callbackContext) Callback() *tb.Callback { return c.callback }

func (c *callbackContext) Respond(resp ...*tb.CallbackResponse) error {
	c.responses = append(c.responses, resp...)
	return nil
}

func newCallbackTestService() *Telegram {
	return &Telegram{logger: log.Logger.Named("telegram_test")}
}

func TestAnswerCallbackRespondsOnce(t *testing.T) {
	s := newCallbackTestService()
	c := &callbackContext{callback: &tb.Callback{ID: "1"}}

	err := s.answerCallback(func(tb.Context) error { return nil })(c)
	require.NoError(t, err)
	require.Len(t, c.responses, 1)
	require.False(t, c.responses[0].ShowAlert)
	require.Empty(t, c.responses[0].Text)
}

func TestAnswerCallbackAlertsTypedError(t *testing.T) {
	s := newCallbackTestService()
	c := &callbackContext{callback: &tb.Callback{ID: "1"}}

	handlerErr := ingest.NewError(ingest.ErrCodeNotFound, ingest.StageDone, "File not found or already expired.", nil)
	err := s.answerCallback(func(tb.Context) error { return handlerErr })(c)
	require.NoError(t, err)
	require.Len(t, c.responses, 1)
	require.True(t, c.responses[0].ShowAlert)
	require.Equal(t, "❌ File not found or already expired.", c.responses[0].Text)
}

func TestAnswerCallbackHidesUntypedError(t *testing.T) {
	s := newCallbackTestService()
	c := &callbackContext{callback: &tb.Callback{ID: "1"}}

	err := s.answerCallback(func(tb.Context) error { return errors.New("mongo down") })(c)
	require.NoError(t, err)
	require.Len(t, c.responses, 1)
	require.Equal(t, "❌ Something went wrong.", c.responses[0].Text)
}

func TestAnswerCallbackIgnoresMessages(t *testing.T) {
	s := newCallbackTestService()
	c := &callbackContext{}

	want := errors.New("boom")
	err := s.answerCallback(func(tb.Context) error { return want })(c)
	require.ErrorIs(t, err, want)
	require.Empty(t, c.responses)
}
