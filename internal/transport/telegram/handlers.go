package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/sadrozzy/Assistant-AI/internal/schedule"
	"github.com/sadrozzy/Assistant-AI/internal/storage"
	"github.com/sadrozzy/Assistant-AI/internal/tasks"
	"github.com/sadrozzy/Assistant-AI/pkg/logx"
)

const (
	msgStart = "👋 Привет! Я — твой личный ассистент.\n\n" +
		"Я помогу управлять задачами, напоминаниями и календарём.\n" +
		"Можешь отправлять мне текстовые или голосовые команды!\n" +
		"\n/help — список команд."
	msgHelp = "ℹ️ Доступные команды:\n" +
		"/start — приветствие и регистрация\n" +
		"/help — помощь по командам\n" +
		"/newtask — создать новую задачу\n" +
		"/tasks — список задач\n" +
		"/deltask — удалить задачу\n" +
		"/google — подключение Google Calendar\n" +
		"/timezone — настройка часового пояса\n" +
		"/cancel — отменить текущий ввод\n" +
		"\nМожешь также отправлять голосовые сообщения для создания задач!"
	msgTimezonePrompt = "Введите ваш часовой пояс в формате +03:00, -05:00 и т.д.\nНапример, для Москвы — +03:00"
	msgTimezoneBad    = "Некорректный формат. Введите, например, +03:00 или -05:00"
	msgInternalError  = "Что-то пошло не так, попробуйте ещё раз."
)

func (b *Bot) registerHandlers() {
	menu := &tele.ReplyMarkup{}
	btnConnect := menu.Data("🔗 Подключить Google Calendar", "google_connect")
	btnDisconnect := menu.Data("Отключить", "google_disconnect")

	b.bot.Handle("/start", func(c tele.Context) error {
		ctx, cancel := b.handlerCtx(handlerTimeout)
		defer cancel()
		if _, err := b.resolveUser(ctx, c); err != nil {
			b.log.Error("start: user upsert failed", logx.Err(err))
			return c.Send(msgInternalError)
		}
		return c.Send(msgStart)
	})

	b.bot.Handle("/help", func(c tele.Context) error {
		return c.Send(msgHelp)
	})

	b.bot.Handle("/cancel", func(c tele.Context) error {
		if s := c.Sender(); s != nil {
			b.states.clear(s.ID)
			b.cancels.cancel(s.ID)
		}
		return c.Send("Ок, отменено.")
	})

	b.bot.Handle("/newtask", func(c tele.Context) error {
		text := strings.TrimSpace(c.Message().Payload)
		if text == "" {
			return c.Send("Пожалуйста, укажите описание задачи после команды.")
		}
		return b.intake(c, text)
	})

	b.bot.Handle("/tasks", func(c tele.Context) error {
		ctx, cancel := b.handlerCtx(handlerTimeout)
		defer cancel()
		user, err := b.resolveUser(ctx, c)
		if err != nil {
			b.log.Error("tasks: user upsert failed", logx.Err(err))
			return c.Send(msgInternalError)
		}
		list, err := b.tasks.List(ctx, user)
		if err != nil {
			b.log.Error("tasks: list failed", logx.Int64("user_id", user.ID), logx.Err(err))
			return c.Send(msgInternalError)
		}
		if len(list) == 0 {
			return c.Send("У вас нет задач.")
		}
		return c.Send("Ваши задачи:\n" + formatTasks(list, user.Timezone))
	})

	b.bot.Handle("/deltask", func(c tele.Context) error {
		arg := strings.TrimSpace(c.Message().Payload)
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return c.Send("Пожалуйста, укажите id задачи (например: /deltask 3)")
		}
		ctx, cancel := b.handlerCtx(handlerTimeout)
		defer cancel()
		user, err := b.resolveUser(ctx, c)
		if err != nil {
			b.log.Error("deltask: user upsert failed", logx.Err(err))
			return c.Send(msgInternalError)
		}
		switch err := b.tasks.Delete(ctx, user, id); {
		case errors.Is(err, storage.ErrNotFound):
			return c.Send("Задача не найдена или не принадлежит вам.")
		case err != nil:
			b.log.Error("deltask failed", logx.Int64("task_id", id), logx.Err(err))
			return c.Send(msgInternalError)
		}
		return c.Send(fmt.Sprintf("Задача %d удалена.", id))
	})

	b.bot.Handle("/timezone", func(c tele.Context) error {
		if s := c.Sender(); s != nil {
			b.states.set(s.ID, stateAwaitingTimezone)
		}
		return c.Send(msgTimezonePrompt)
	})

	b.bot.Handle("/google", func(c tele.Context) error {
		ctx, cancel := b.handlerCtx(handlerTimeout)
		defer cancel()
		return b.sendGoogleMenu(ctx, c, &btnConnect, &btnDisconnect)
	})

	b.bot.Handle(&btnConnect, func(c tele.Context) error {
		defer c.Respond()
		if b.auth == nil || !b.auth.Enabled() {
			return c.Send("Интеграция с Google Calendar не настроена на сервере.")
		}
		if s := c.Sender(); s != nil {
			b.states.set(s.ID, stateAwaitingAuthCode)
		}
		return c.Send("Перейдите по ссылке для авторизации Google и отправьте полученный код одним сообщением:\n\n" + b.auth.AuthURL())
	})

	b.bot.Handle(&btnDisconnect, func(c tele.Context) error {
		defer c.Respond()
		ctx, cancel := b.handlerCtx(handlerTimeout)
		defer cancel()
		user, err := b.resolveUser(ctx, c)
		if err != nil {
			return c.Send(msgInternalError)
		}
		if err := b.store.ClearCredentials(ctx, user.ID); err != nil {
			b.log.Error("google disconnect failed", logx.Int64("user_id", user.ID), logx.Err(err))
			return c.Send(msgInternalError)
		}
		return b.sendGoogleMenu(ctx, c, &btnConnect, &btnDisconnect)
	})

	b.bot.Handle(tele.OnText, func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		text := strings.TrimSpace(c.Text())
		switch b.states.get(sender.ID) {
		case stateAwaitingAuthCode:
			return b.handleAuthCode(c, text)
		case stateAwaitingTimezone:
			return b.handleTimezone(c, text)
		default:
			if text == "" {
				return nil
			}
			return b.intake(c, text)
		}
	})

	b.bot.Handle(tele.OnVoice, b.handleVoice)
}

func (b *Bot) sendGoogleMenu(ctx context.Context, c tele.Context, connect, disconnect *tele.Btn) error {
	user, err := b.resolveUser(ctx, c)
	if err != nil {
		return c.Send(msgInternalError)
	}
	markup := &tele.ReplyMarkup{}
	if _, ok := user.Credentials(); ok {
		markup.Inline(markup.Row(*disconnect))
		return c.Send("✅ Google Calendar подключён!", markup)
	}
	markup.Inline(markup.Row(*connect))
	return c.Send("❌ Google Calendar не подключён.", markup)
}

// intake runs one message through the task pipeline and reports the result.
func (b *Bot) intake(c tele.Context, text string) error {
	ctx, cancel := b.handlerCtx(handlerTimeout)
	defer cancel()
	user, err := b.resolveUser(ctx, c)
	if err != nil {
		b.log.Error("intake: user upsert failed", logx.Err(err))
		return c.Send(msgInternalError)
	}
	res, err := b.tasks.Create(ctx, user, text)
	if err != nil {
		b.log.Error("intake: create failed", logx.Int64("user_id", user.ID), logx.Err(err))
		return c.Send(msgInternalError)
	}
	return c.Send(intakeReply(res))
}

func intakeReply(res tasks.CreateResult) string {
	base := "Задача добавлена: " + res.Task.Description
	switch res.Sync {
	case tasks.SyncDone:
		return base + "\nСобытие создано в Google Calendar."
	case tasks.SyncNoCredentials:
		return base + "\nGoogle Calendar не подключён, событие не создано. /google"
	case tasks.SyncFailed:
		return base + "\nНе удалось создать событие в Google Calendar, проверьте авторизацию: /google"
	default:
		return base
	}
}

func (b *Bot) handleAuthCode(c tele.Context, code string) error {
	sender := c.Sender()
	ctx, cancel := b.handlerCtx(handlerTimeout)
	defer cancel()
	user, err := b.resolveUser(ctx, c)
	if err != nil {
		return c.Send(msgInternalError)
	}
	creds, err := b.auth.Exchange(ctx, code)
	if err != nil {
		b.log.Warn("google token exchange failed", logx.Int64("user_id", user.ID), logx.Err(err))
		// State stays armed so the user can paste a fresh code.
		return c.Send("Ошибка авторизации Google. Код некорректен или устарел. " +
			"Пожалуйста, попробуйте ещё раз: скопируйте новый код из браузера и отправьте его сюда.")
	}
	if err := b.store.SetCredentials(ctx, user.ID, creds); err != nil {
		b.log.Error("credentials save failed", logx.Int64("user_id", user.ID), logx.Err(err))
		return c.Send(msgInternalError)
	}
	b.states.clear(sender.ID)
	return c.Send("Google аккаунт успешно привязан!")
}

func (b *Bot) handleTimezone(c tele.Context, tz string) error {
	sender := c.Sender()
	if !schedule.ValidOffset(tz) {
		return c.Send(msgTimezoneBad)
	}
	ctx, cancel := b.handlerCtx(handlerTimeout)
	defer cancel()
	user, err := b.resolveUser(ctx, c)
	if err != nil {
		return c.Send(msgInternalError)
	}
	if err := b.store.SetTimezone(ctx, user.ID, tz); err != nil {
		b.log.Error("timezone save failed", logx.Int64("user_id", user.ID), logx.Err(err))
		return c.Send(msgInternalError)
	}
	b.states.clear(sender.ID)
	return c.Send("Часовой пояс обновлён: " + tz)
}

func formatTasks(list []storage.Task, tz string) string {
	loc := schedule.Location(tz)
	var sb strings.Builder
	for i, t := range list {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%d. %s (%s)", t.ID, t.Description, t.Status)
		if t.Due != nil {
			fmt.Fprintf(&sb, " — %s", t.Due.In(loc).Format("02.01 15:04"))
		}
	}
	return sb.String()
}
