package telegram

import (
	"context"
	"errors"
	"io"
	"os"

	tele "gopkg.in/telebot.v4"

	"github.com/sadrozzy/Assistant-AI/pkg/logx"
)

// maxVoiceBytes caps how much audio we accept for transcription.
const maxVoiceBytes = 20 << 20

// handleVoice downloads a voice note, transcribes it, and feeds the text
// into the regular intake pipeline. The temp file is removed no matter
// how transcription ends, so a cancelled or failed job leaves nothing
// behind and no task is created.
func (b *Bot) handleVoice(c tele.Context) error {
	if b.trans == nil {
		return c.Send("Распознавание голосовых сообщений не настроено на сервере.")
	}
	voice := c.Message().Voice
	if voice == nil {
		return nil
	}
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	base, cancel := b.handlerCtx(voiceTimeout)
	defer cancel()
	// Registered so /cancel can abort the transcription mid-flight.
	ctx, release := b.cancels.track(sender.ID, base)
	defer release()

	src, err := b.bot.File(&voice.File)
	if err != nil {
		b.log.Warn("voice download failed", logx.String("file_id", voice.FileID), logx.Err(err))
		return c.Send("Не удалось скачать голосовое сообщение, попробуйте ещё раз.")
	}
	defer src.Close()

	tmp, err := os.CreateTemp(b.tempDir, "voice-*.ogg")
	if err != nil {
		b.log.Error("voice temp file failed", logx.Err(err))
		return c.Send(msgInternalError)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, io.LimitReader(src, maxVoiceBytes)); err != nil {
		b.log.Warn("voice download failed", logx.String("file_id", voice.FileID), logx.Err(err))
		return c.Send("Не удалось скачать голосовое сообщение, попробуйте ещё раз.")
	}
	audio, err := os.ReadFile(tmp.Name())
	if err != nil {
		b.log.Error("voice temp read failed", logx.Err(err))
		return c.Send(msgInternalError)
	}

	text, err := b.trans.Transcribe(ctx, audio)
	if errors.Is(err, context.Canceled) {
		// /cancel already answered the user.
		b.log.Debug("transcription cancelled", logx.String("file_id", voice.FileID))
		return nil
	}
	if err != nil {
		b.log.Warn("transcription failed", logx.String("file_id", voice.FileID), logx.Err(err))
		return c.Send("Не удалось распознать голосовое сообщение.")
	}
	if text == "" {
		return c.Send("В голосовом сообщении не удалось распознать текст.")
	}
	b.log.Debug("voice transcribed", logx.String("file_id", voice.FileID), logx.Int("chars", len(text)))
	return b.intake(c, text)
}
