package sources

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"golang.org/x/time/rate"

	"github.com/avelichko/manager-pulse/internal/store"
)

const (
	dialogPageSize  = 100
	historyPageSize = 100
)

// TelegramFetcher pulls recent private conversations into the local store.
type TelegramFetcher struct {
	client  *telegram.Client
	store   *store.Store
	limiter *rate.Limiter
}

func NewTelegramFetcher(client *telegram.Client, st *store.Store) *TelegramFetcher {
	return &TelegramFetcher{
		client: client,
		store:  st,
		// One request every 300ms keeps us well under Telegram's flood limits.
		limiter: rate.NewLimiter(rate.Every(300*time.Millisecond), 1),
	}
}

// FetchRecentChats connects to Telegram, selects up to chatLimit one-on-one
// dialogs active within maxDialogAge, and stores message history going back
// historyDepth. Returns the authenticated account's user ID.
func (f *TelegramFetcher) FetchRecentChats(ctx context.Context, chatLimit int, historyDepth, maxDialogAge time.Duration) (int64, error) {
	var selfID int64
	err := f.client.Run(ctx, func(ctx context.Context) error {
		status, err := f.client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("checking auth status: %w", err)
		}
		if !status.Authorized {
			return fmt.Errorf("telegram session is not authorized, run 'manager-pulse login' first")
		}
		selfID = status.User.ID
		if err := f.store.SetMeta(store.MetaSelfUserID, strconv.FormatInt(selfID, 10)); err != nil {
			return fmt.Errorf("saving self user id: %w", err)
		}
		return f.fetchDialogs(ctx, f.client.API(), selfID, chatLimit, historyDepth, maxDialogAge)
	})
	if err != nil {
		return 0, err
	}
	return selfID, nil
}

func (f *TelegramFetcher) fetchDialogs(ctx context.Context, api *tg.Client, selfID int64, chatLimit int, historyDepth, maxDialogAge time.Duration) error {
	now := time.Now()
	since := now.Add(-historyDepth)
	minActivity := now.Add(-maxDialogAge)

	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}
	res, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		Limit:      dialogPageSize,
		OffsetPeer: &tg.InputPeerEmpty{},
	})
	if err != nil {
		return fmt.Errorf("listing dialogs: %w", err)
	}

	dialogs, users, topMessages := splitDialogs(res)
	userIndex := make(map[int64]*tg.User, len(users))
	for _, uc := range users {
		if u, ok := uc.(*tg.User); ok {
			userIndex[u.ID] = u
		}
	}
	lastDates := topMessageDates(topMessages)

	fetched := 0
	for _, dc := range dialogs {
		if fetched >= chatLimit {
			break
		}
		d, ok := dc.(*tg.Dialog)
		if !ok {
			continue
		}
		peer, ok := d.Peer.(*tg.PeerUser)
		if !ok {
			continue
		}
		u, ok := userIndex[peer.UserID]
		if !ok || u.Bot || u.Deleted || u.Self {
			continue
		}
		lastDate := lastDates[u.ID]
		if lastDate.Before(minActivity) {
			log.Printf("[telegram] skipping %s: last activity %s", displayName(u), lastDate.Format("2006-01-02"))
			continue
		}

		start := time.Now()
		stored, err := f.fetchHistory(ctx, api, u, selfID, since)
		duration := time.Since(start)
		if err != nil {
			log.Printf("[telegram] fetch failed for %s: %v", displayName(u), err)
			if logErr := f.store.LogFetch(&store.FetchLog{
				DialogID:     u.ID,
				Status:       "error",
				ErrorMessage: err.Error(),
				DurationMS:   duration.Milliseconds(),
			}); logErr != nil {
				log.Printf("[telegram] recording fetch failure: %v", logErr)
			}
			continue
		}
		if stored == 0 {
			continue
		}
		if err := f.store.UpsertDialog(&store.Dialog{
			ID:              u.ID,
			AccessHash:      u.AccessHash,
			Name:            displayName(u),
			Username:        u.Username,
			LastMessageDate: lastDate,
		}); err != nil {
			return fmt.Errorf("saving dialog %d: %w", u.ID, err)
		}
		if err := f.store.LogFetch(&store.FetchLog{
			DialogID:   u.ID,
			Status:     "ok",
			DurationMS: duration.Milliseconds(),
		}); err != nil {
			log.Printf("[telegram] recording fetch: %v", err)
		}
		log.Printf("[telegram] fetched %d messages from %s in %s", stored, displayName(u), duration.Round(time.Millisecond))
		fetched++
	}
	log.Printf("[telegram] fetched %d dialogs", fetched)
	return nil
}

// fetchHistory pages backwards from the newest message until it crosses the
// since cutoff or runs out of history.
func (f *TelegramFetcher) fetchHistory(ctx context.Context, api *tg.Client, u *tg.User, selfID int64, since time.Time) (int, error) {
	peer := &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}
	offsetID := 0
	stored := 0
	for {
		if err := f.limiter.Wait(ctx); err != nil {
			return stored, err
		}
		res, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     peer,
			OffsetID: offsetID,
			Limit:    historyPageSize,
		})
		if err != nil {
			return stored, fmt.Errorf("fetching history: %w", err)
		}
		batch := messagesOf(res)
		if len(batch) == 0 {
			return stored, nil
		}

		reachedCutoff := false
		for _, mc := range batch {
			switch m := mc.(type) {
			case *tg.Message:
				offsetID = m.ID
				at := time.Unix(int64(m.Date), 0)
				if at.Before(since) {
					reachedCutoff = true
					break
				}
				from, hasFrom := m.GetFromID()
				senderID, known := resolveSender(from, hasFrom, m.Out, selfID)
				if err := f.store.UpsertMessage(&store.Message{
					DialogID:    u.ID,
					MessageID:   m.ID,
					SenderID:    senderID,
					SenderKnown: known,
					Text:        m.Message,
					MessageDate: at,
				}); err != nil {
					return stored, fmt.Errorf("saving message %d: %w", m.ID, err)
				}
				stored++
			case *tg.MessageService:
				offsetID = m.ID
			case *tg.MessageEmpty:
				offsetID = m.ID
			}
			if reachedCutoff {
				break
			}
		}
		if reachedCutoff || len(batch) < historyPageSize {
			return stored, nil
		}
	}
}

// resolveSender maps a Telegram message to the sending user. Outgoing
// messages without an explicit sender belong to the account itself.
// Anything else without a user sender stays unattributed.
func resolveSender(from tg.PeerClass, hasFrom, outgoing bool, selfID int64) (int64, bool) {
	if hasFrom {
		if pu, ok := from.(*tg.PeerUser); ok {
			return pu.UserID, true
		}
		return 0, false
	}
	if outgoing {
		return selfID, true
	}
	return 0, false
}

func splitDialogs(res tg.MessagesDialogsClass) ([]tg.DialogClass, []tg.UserClass, []tg.MessageClass) {
	switch d := res.(type) {
	case *tg.MessagesDialogs:
		return d.Dialogs, d.Users, d.Messages
	case *tg.MessagesDialogsSlice:
		return d.Dialogs, d.Users, d.Messages
	default:
		return nil, nil, nil
	}
}

func messagesOf(res tg.MessagesMessagesClass) []tg.MessageClass {
	switch m := res.(type) {
	case *tg.MessagesMessages:
		return m.Messages
	case *tg.MessagesMessagesSlice:
		return m.Messages
	default:
		return nil
	}
}

// topMessageDates indexes the newest message date per private dialog from the
// top messages returned alongside the dialog list.
func topMessageDates(msgs []tg.MessageClass) map[int64]time.Time {
	dates := make(map[int64]time.Time)
	for _, mc := range msgs {
		m, ok := mc.(*tg.Message)
		if !ok {
			continue
		}
		pu, ok := m.PeerID.(*tg.PeerUser)
		if !ok {
			continue
		}
		at := time.Unix(int64(m.Date), 0)
		if at.After(dates[pu.UserID]) {
			dates[pu.UserID] = at
		}
	}
	return dates
}

func displayName(u *tg.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return fmt.Sprintf("user %d", u.ID)
}
