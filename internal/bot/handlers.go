package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"b3-alerts/internal/market"
	"b3-alerts/internal/storage"
	"b3-alerts/internal/telegram"
)

const (
	callbackCancelPrefix     = "RM_CANCEL_"
	callbackConfirmAllPrefix = "RM_ALL_CONFIRM_"

	msgUnauthorized = "Você não está autorizado(a) a usar este bot. Envie seu chat ID (%d) ao administrador para se cadastrar."
	msgAdminOnly    = "Somente o administrador pode usar este comando."
	msgUsageHint    = "Só aceito comandos. Use /help para ver a lista."
)

func (b *Bot) handleUpdate(ctx context.Context, update telegram.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, *update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		b.handleMessage(ctx, *update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg telegram.Message) {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		b.reply(ctx, msg.Chat.ID, msgUsageHint)
		return
	}

	fields := strings.Fields(text)
	command := strings.TrimPrefix(fields[0], "/")
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}
	args := fields[1:]
	chatID := msg.Chat.ID

	switch command {
	case "start":
		b.requireUser(ctx, chatID, func() {
			b.reply(ctx, chatID, fmt.Sprintf("Olá %s!\n\nBem-vindo(a) ao bot de alertas de ativos da B3. Use /help para ver os comandos.", msg.From.FirstName))
		})
	case "help":
		b.requireUser(ctx, chatID, func() { b.reply(ctx, chatID, helpMessage) })
	case "set":
		b.requireUser(ctx, chatID, func() { b.handleSet(ctx, chatID, args) })
	case "list":
		b.requireUser(ctx, chatID, func() { b.handleList(ctx, chatID) })
	case "rm":
		b.requireUser(ctx, chatID, func() { b.handleRemove(ctx, chatID, args) })
	case "add_user":
		b.requireAdmin(ctx, chatID, func() { b.handleAddUser(ctx, chatID, args) })
	case "toggle_user":
		b.requireAdmin(ctx, chatID, func() { b.handleToggleUser(ctx, chatID, args) })
	case "list_users":
		b.requireAdmin(ctx, chatID, func() { b.handleListUsers(ctx, chatID) })
	case "admin_help":
		b.requireAdmin(ctx, chatID, func() { b.reply(ctx, chatID, adminHelpMessage) })
	default:
		b.reply(ctx, chatID, msgUsageHint)
	}
}

func (b *Bot) requireUser(ctx context.Context, chatID int64, handler func()) {
	authorized, err := b.users.IsAuthorized(ctx, chatID)
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("authorization lookup failed")
		b.reply(ctx, chatID, "Erro interno, tente novamente mais tarde.")
		return
	}
	if !authorized {
		b.reply(ctx, chatID, fmt.Sprintf(msgUnauthorized, chatID))
		return
	}
	handler()
}

func (b *Bot) requireAdmin(ctx context.Context, chatID int64, handler func()) {
	if chatID != b.opts.AdminChatID {
		b.reply(ctx, chatID, msgAdminOnly)
		return
	}
	handler()
}

func (b *Bot) handleSet(ctx context.Context, chatID int64, args []string) {
	if len(args) != 3 {
		b.reply(ctx, chatID, "Parâmetros inválidos. Exemplo: `/set PETR4 compra 30.50`")
		return
	}

	ticker := market.SanitizeTicker(args[0])
	direction, err := parseDirectionWord(args[1])
	if err != nil {
		b.reply(ctx, chatID, "Tipo de alerta inválido. Use 'compra' ou 'venda'.")
		return
	}
	target, err := decimal.NewFromString(args[2])
	if err != nil || !target.IsPositive() {
		b.reply(ctx, chatID, "Valor inválido. Exemplo: `/set PETR4 compra 30.50`")
		return
	}

	if !b.tickerExists(ctx, ticker) {
		b.reply(ctx, chatID, fmt.Sprintf("Ticker %s não encontrado na B3. Verifique o código e tente novamente.", market.DisplayTicker(ticker)))
		return
	}

	alert, edited, err := b.alerts.UpsertAlert(ctx, chatID, ticker, direction, target)
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Str("ticker", ticker).Msg("upsert alert failed")
		b.reply(ctx, chatID, "Erro ao salvar o alerta, tente novamente.")
		return
	}

	verb := "criado"
	if edited {
		verb = "editado e rearmado"
	}
	b.reply(ctx, chatID, fmt.Sprintf("Alerta *%s* para %s\nTipo: %s\nValor: R$ %s",
		verb, market.DisplayTicker(alert.Ticker), directionWord(alert.Direction), alert.TargetPrice.StringFixed(2)))
}

// tickerExists treats any symbol without a usable price as unknown, so an
// alert that could never resolve is rejected up front.
func (b *Bot) tickerExists(ctx context.Context, ticker string) bool {
	snap, err := b.quotes.Quote(ctx, ticker)
	if err != nil {
		b.logger.Debug().Err(err).Str("ticker", ticker).Msg("ticker lookup failed")
		return false
	}
	return snap.LastPrice.IsPositive() || snap.PreviousClose.IsPositive()
}

func (b *Bot) handleList(ctx context.Context, chatID int64) {
	alerts, err := b.alerts.ListAlertsByOwner(ctx, chatID)
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("list alerts failed")
		b.reply(ctx, chatID, "Erro ao listar os alertas.")
		return
	}
	if len(alerts) == 0 {
		b.reply(ctx, chatID, "Nenhum alerta criado até agora.")
		return
	}

	var builder strings.Builder
	builder.WriteString("Seus alertas:\n\n")
	for _, alert := range alerts {
		status := "Ativo"
		if alert.State == storage.StateTriggered {
			status = "Disparado"
		}
		builder.WriteString(fmt.Sprintf("*%s* (%s)\nValor: R$ %s\nStatus: %s\n-----------------------\n",
			market.DisplayTicker(alert.Ticker), directionWord(alert.Direction), alert.TargetPrice.StringFixed(2), status))
	}
	b.reply(ctx, chatID, builder.String())
}

func (b *Bot) handleRemove(ctx context.Context, chatID int64, args []string) {
	if len(args) == 1 && strings.EqualFold(args[0], "all") {
		keyboard := &telegram.InlineKeyboardMarkup{
			InlineKeyboard: [][]telegram.InlineKeyboardButton{{
				{Text: "❌ Cancelar", CallbackData: fmt.Sprintf("%s%d", callbackCancelPrefix, chatID)},
				{Text: "✅ Sim, remover tudo", CallbackData: fmt.Sprintf("%s%d", callbackConfirmAllPrefix, chatID)},
			}},
		}
		if err := b.api.SendMessage(ctx, chatID, "Remover *todos* os seus alertas? Essa ação não pode ser desfeita.", keyboard); err != nil {
			b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send confirmation failed")
		}
		return
	}

	if len(args) != 2 {
		b.reply(ctx, chatID, "Parâmetros inválidos. Use `/rm PETR4 compra` para remover um alerta ou `/rm all` para remover todos.")
		return
	}

	ticker := market.SanitizeTicker(args[0])
	direction, err := parseDirectionWord(args[1])
	if err != nil {
		b.reply(ctx, chatID, "Tipo de alerta inválido. Use 'compra' ou 'venda'.")
		return
	}

	removed, err := b.alerts.DeleteAlert(ctx, chatID, ticker, direction)
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("delete alert failed")
		b.reply(ctx, chatID, "Erro ao remover o alerta.")
		return
	}
	if !removed {
		b.reply(ctx, chatID, fmt.Sprintf("Nenhum alerta encontrado para %s (%s).", market.DisplayTicker(ticker), directionWord(direction)))
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("Alerta removido para %s (%s).", market.DisplayTicker(ticker), directionWord(direction)))
}

func (b *Bot) handleCallback(ctx context.Context, callback telegram.CallbackQuery) {
	if err := b.api.AnswerCallbackQuery(ctx, callback.ID); err != nil {
		b.logger.Debug().Err(err).Msg("answer callback failed")
	}
	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	switch {
	case strings.HasPrefix(callback.Data, callbackCancelPrefix):
		b.edit(ctx, chatID, messageID, "Remoção geral cancelada.")

	case strings.HasPrefix(callback.Data, callbackConfirmAllPrefix):
		owner := strings.TrimPrefix(callback.Data, callbackConfirmAllPrefix)
		if owner != strconv.FormatInt(callback.From.ID, 10) {
			b.edit(ctx, chatID, messageID, "Somente quem pediu a remoção geral pode confirmar.")
			return
		}
		count, err := b.alerts.DeleteAlertsByOwner(ctx, callback.From.ID)
		if err != nil {
			b.logger.Error().Err(err).Int64("chat_id", callback.From.ID).Msg("delete all alerts failed")
			b.edit(ctx, chatID, messageID, "Erro ao remover os alertas, tente novamente.")
			return
		}
		b.edit(ctx, chatID, messageID, fmt.Sprintf("Todos os seus (%d) alertas foram removidos.", count))
	}
}

func (b *Bot) handleAddUser(ctx context.Context, chatID int64, args []string) {
	if len(args) != 2 {
		b.reply(ctx, chatID, "Parâmetros inválidos. Use: /add_user <chat_id> <nome>")
		return
	}
	newID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.reply(ctx, chatID, "O chat ID deve ser um número inteiro.")
		return
	}
	if err := b.users.AddUser(ctx, newID, args[1]); err != nil {
		b.logger.Error().Err(err).Int64("target", newID).Msg("add user failed")
		b.reply(ctx, chatID, "Erro ao adicionar o usuário.")
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("Usuário %s com chat ID %d adicionado com sucesso.", args[1], newID))
}

func (b *Bot) handleToggleUser(ctx context.Context, chatID int64, args []string) {
	if len(args) != 2 {
		b.reply(ctx, chatID, "Parâmetros inválidos. Use: /toggle_user <chat_id> ativar|inativar")
		return
	}
	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.reply(ctx, chatID, "O chat ID deve ser um número inteiro.")
		return
	}

	var active bool
	switch strings.ToLower(args[1]) {
	case "ativar":
		active = true
	case "inativar":
		active = false
	default:
		b.reply(ctx, chatID, "Status inválido. Use 'ativar' ou 'inativar'.")
		return
	}

	if err := b.users.SetUserActive(ctx, targetID, active); err != nil {
		b.logger.Error().Err(err).Int64("target", targetID).Msg("toggle user failed")
		b.reply(ctx, chatID, fmt.Sprintf("Usuário com chat ID %d não encontrado.", targetID))
		return
	}
	action := "INATIVADO"
	if active {
		action = "ATIVADO"
	}
	b.reply(ctx, chatID, fmt.Sprintf("Usuário com chat ID %d foi %s com sucesso.", targetID, action))
}

func (b *Bot) handleListUsers(ctx context.Context, chatID int64) {
	users, err := b.users.ListUsers(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("list users failed")
		b.reply(ctx, chatID, "Erro ao listar os usuários.")
		return
	}
	if len(users) == 0 {
		b.reply(ctx, chatID, "Nenhum usuário cadastrado.")
		return
	}

	var builder strings.Builder
	builder.WriteString("*Usuários cadastrados:*\n\n")
	for _, user := range users {
		status := "Inativo"
		if user.Active {
			status = "Ativo"
		}
		builder.WriteString(fmt.Sprintf("ID: %d\nNome: %s | Status: %s\n-----------------------------\n",
			user.ChatID, user.Name, status))
	}
	b.reply(ctx, chatID, builder.String())
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.api.SendMessage(ctx, chatID, text, nil); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("reply failed")
	}
}

func (b *Bot) edit(ctx context.Context, chatID, messageID int64, text string) {
	if err := b.api.EditMessageText(ctx, chatID, messageID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("edit message failed")
	}
}

func parseDirectionWord(word string) (storage.Direction, error) {
	switch strings.ToLower(word) {
	case "compra":
		return storage.DirectionBuy, nil
	case "venda":
		return storage.DirectionSell, nil
	}
	return "", fmt.Errorf("invalid alert type %q", word)
}

func directionWord(direction storage.Direction) string {
	if direction == storage.DirectionSell {
		return "venda"
	}
	return "compra"
}

const helpMessage = "*Comandos do bot de alertas*\n\n" +
	"🎯 `/set <TICKER> <TIPO> <VALOR>`\n" +
	"  - Cria ou edita um alerta (rearma se já existir).\n" +
	"  - Exemplo: `/set PETR4 compra 30.50`\n\n" +
	"📄 `/list`\n" +
	"  - Lista seus alertas ativos e disparados.\n\n" +
	"🗑️ `/rm <TICKER> <TIPO>`\n" +
	"  - Remove um alerta específico.\n\n" +
	"💣 `/rm all`\n" +
	"  - Remove *todos* os seus alertas (pede confirmação).\n\n" +
	"❓ `/help`\n" +
	"  - Mostra esta mensagem."

const adminHelpMessage = "*Comandos de administração*\n\n" +
	"👥 `/add_user <ID> <Nome>` - adiciona um usuário autorizado.\n" +
	"📝 `/list_users` - lista os usuários cadastrados.\n" +
	"⚙️ `/toggle_user <ID> <ativar|inativar>` - altera o acesso de um usuário.\n" +
	"❓ `/admin_help` - mostra esta lista."
