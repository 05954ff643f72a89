package dispatch

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"courier/internal/domain/entity"
	"courier/internal/message"
	"courier/internal/messenger"
	"courier/internal/registry"
	"courier/internal/repository"
)

// memStore is the shared in-memory state behind the fake repositories. One
// store backs all three so tests can assert cross-repository effects such as
// cleanup and requeueing directly. All methods lock: send passes hit the
// store from several messenger goroutines at once.
type memStore struct {
	mu sync.Mutex

	messages   map[int64]*entity.Message
	dispatches map[int64]*entity.Dispatch
	errorRows  []entity.DispatchError
	subs       []*entity.Subscription

	nextMessageID  int64
	nextDispatchID int64
	nextSubID      int64

	// Forced errors, one per failure point exercised by tests.
	claimErr     error
	createErr    error
	setStatusErr error
	logErr       error
	requeueErr   error
	countErr     error

	// requeueCalls logs every RequeueProcessing id batch.
	requeueCalls [][]int64

	// subsListCalls counts ListForMessageCls calls per type.
	subsListCalls map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		messages:   make(map[int64]*entity.Message),
		dispatches: make(map[int64]*entity.Dispatch),
	}
}

func (s *memStore) dispatch(id int64) *entity.Dispatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatches[id]
}

func (s *memStore) message(id int64) *entity.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[id]
}

func (s *memStore) statusCounts() map[entity.DispatchStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[entity.DispatchStatus]int)
	for _, d := range s.dispatches {
		counts[d.Status]++
	}
	return counts
}

func (s *memStore) loggedErrors(dispatchID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var logs []string
	for _, row := range s.errorRows {
		if row.DispatchID == dispatchID {
			logs = append(logs, row.ErrorLog)
		}
	}
	return logs
}

// fakeMessages implements repository.MessageRepository.
type fakeMessages struct{ *memStore }

func (f *fakeMessages) Create(_ context.Context, msg *entity.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextMessageID++
	msg.ID = f.nextMessageID
	msg.CreatedAt = time.Now()
	f.messages[msg.ID] = msg
	return nil
}

func (f *fakeMessages) Get(_ context.Context, id int64) (*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[id], nil
}

func (f *fakeMessages) FindOpenGrouped(
	_ context.Context, cls, groupMark string, senderID *int64,
) (*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var found *entity.Message
	for _, msg := range f.messages {
		if msg.Cls != cls || msg.GroupMark != groupMark || !int64PtrEq(msg.SenderID, senderID) {
			continue
		}
		open := !msg.DispatchesReady
		if !open {
			for _, d := range f.dispatches {
				if d.MessageID == msg.ID && d.Status == entity.DispatchStatusPending {
					open = true
					break
				}
			}
		}
		if open && (found == nil || msg.ID > found.ID) {
			found = msg
		}
	}
	return found, nil
}

func (f *fakeMessages) UpdateContext(_ context.Context, id int64, context entity.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return entity.ErrNotFound
	}
	msg.Context = context
	for _, d := range f.dispatches {
		if d.MessageID == id {
			d.MessageCache = ""
		}
	}
	return nil
}

func (f *fakeMessages) SetDispatchesReady(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return entity.ErrNotFound
	}
	msg.DispatchesReady = true
	return nil
}

func (f *fakeMessages) ListWithoutDispatches(_ context.Context) ([]*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Message
	for _, msg := range f.messages {
		if !msg.DispatchesReady {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeDispatches implements repository.DispatchRepository.
type fakeDispatches struct{ *memStore }

func (f *fakeDispatches) CreateBatch(_ context.Context, dispatches []*entity.Dispatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, d := range dispatches {
		f.nextDispatchID++
		d.ID = f.nextDispatchID
		d.CreatedAt = time.Now()
		f.dispatches[d.ID] = d
	}
	return nil
}

func (f *fakeDispatches) Get(_ context.Context, id int64) (*entity.Dispatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.dispatches[id]
	if !ok {
		return nil, nil
	}
	d.Message = f.messages[d.MessageID]
	return d, nil
}

func (f *fakeDispatches) ClaimUnsent(_ context.Context, priority int) ([]*entity.Dispatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}

	var claimed []*entity.Dispatch
	for _, d := range f.dispatches {
		if d.Status != entity.DispatchStatusPending && d.Status != entity.DispatchStatusError {
			continue
		}
		msg, ok := f.messages[d.MessageID]
		if !ok {
			continue
		}
		if priority >= 0 && msg.Priority != priority {
			continue
		}
		d.Message = msg
		d.Status = entity.DispatchStatusProcessing
		claimed = append(claimed, d)
	}

	sort.Slice(claimed, func(i, j int) bool {
		if claimed[i].MessageID != claimed[j].MessageID {
			return claimed[i].MessageID > claimed[j].MessageID
		}
		return claimed[i].ID < claimed[j].ID
	})
	return claimed, nil
}

func (f *fakeDispatches) SetStatuses(_ context.Context, buckets repository.StatusBuckets) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setStatusErr != nil {
		return f.setStatusErr
	}

	now := time.Now()
	apply := func(bucket []*entity.Dispatch, status entity.DispatchStatus) {
		for _, d := range bucket {
			stored, ok := f.dispatches[d.ID]
			if !ok {
				continue
			}
			stored.Status = status
			stored.DispatchedAt = &now
			stored.RetryCount++
		}
	}
	apply(buckets.Sent, entity.DispatchStatusSent)
	apply(buckets.Error, entity.DispatchStatusError)
	apply(buckets.Failed, entity.DispatchStatusFailed)
	apply(buckets.Pending, entity.DispatchStatusPending)
	return nil
}

func (f *fakeDispatches) LogErrors(_ context.Context, dispatches []*entity.Dispatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.logErr != nil {
		return f.logErr
	}
	for _, d := range dispatches {
		f.errorRows = append(f.errorRows, entity.DispatchError{
			CreatedAt:  time.Now(),
			DispatchID: d.ID,
			ErrorLog:   d.ErrorLog,
		})
	}
	return nil
}

func (f *fakeDispatches) RequeueProcessing(_ context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requeueCalls = append(f.requeueCalls, ids)
	if f.requeueErr != nil {
		return f.requeueErr
	}
	for _, id := range ids {
		if d, ok := f.dispatches[id]; ok && d.Status == entity.DispatchStatusProcessing {
			d.Status = entity.DispatchStatusPending
		}
	}
	return nil
}

func (f *fakeDispatches) MarkRead(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.dispatches[id]
	if !ok {
		return entity.ErrNotFound
	}
	d.ReadStatus = entity.ReadStatusRead
	return nil
}

func (f *fakeDispatches) ListUnread(_ context.Context) ([]*entity.Dispatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unreadLocked(), nil
}

func (f *fakeDispatches) ListUnreadPage(_ context.Context, offset, limit int) ([]*entity.Dispatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unread := f.unreadLocked()
	if offset >= len(unread) {
		return nil, nil
	}
	end := offset + limit
	if end > len(unread) {
		end = len(unread)
	}
	return unread[offset:end], nil
}

func (f *fakeDispatches) CountUnread(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.unreadLocked())), nil
}

// unreadLocked mirrors the store ordering: newest first.
func (f *fakeDispatches) unreadLocked() []*entity.Dispatch {
	var out []*entity.Dispatch
	for _, d := range f.dispatches {
		if d.ReadStatus == entity.ReadStatusUnread {
			d.Message = f.messages[d.MessageID]
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (f *fakeDispatches) CountFailed(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	var n int64
	for _, d := range f.dispatches {
		if d.Status == entity.DispatchStatusFailed {
			n++
		}
	}
	return n, nil
}

func (f *fakeDispatches) CleanupSent(
	_ context.Context, before *time.Time, dispatchesOnly bool,
) (repository.CleanupResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var res repository.CleanupResult
	affected := make(map[int64]struct{})
	for id, d := range f.dispatches {
		if d.Status != entity.DispatchStatusSent {
			continue
		}
		if before != nil && (d.DispatchedAt == nil || d.DispatchedAt.After(*before)) {
			continue
		}
		delete(f.dispatches, id)
		affected[d.MessageID] = struct{}{}
		res.Dispatches++
	}

	if !dispatchesOnly {
		for mid := range affected {
			remaining := false
			for _, d := range f.dispatches {
				if d.MessageID == mid {
					remaining = true
					break
				}
			}
			if !remaining {
				delete(f.messages, mid)
				res.Messages++
			}
		}
	}
	return res, nil
}

// fakeSubscriptions implements repository.SubscriptionRepository.
type fakeSubscriptions struct{ *memStore }

func (f *fakeSubscriptions) Create(_ context.Context, sub *entity.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSubID++
	sub.ID = f.nextSubID
	sub.CreatedAt = time.Now()
	f.subs = append(f.subs, sub)
	return nil
}

func (f *fakeSubscriptions) Cancel(
	_ context.Context, ref repository.SubscriberRef, messageCls, messengerCls string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	kept := f.subs[:0]
	for _, sub := range f.subs {
		matches := sub.MessageCls == messageCls && sub.MessengerCls == messengerCls
		if matches {
			if ref.UserID != nil {
				matches = sub.RecipientID != nil && *sub.RecipientID == *ref.UserID
			} else {
				matches = sub.Address != nil && *sub.Address == ref.Address
			}
		}
		if !matches {
			kept = append(kept, sub)
		}
	}
	f.subs = kept
	return nil
}

func (f *fakeSubscriptions) ListForRecipient(_ context.Context, recipientID int64) ([]*entity.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Subscription
	for _, sub := range f.subs {
		if sub.RecipientID != nil && *sub.RecipientID == recipientID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (f *fakeSubscriptions) ListForMessageCls(_ context.Context, messageCls string) ([]*entity.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subsListCalls == nil {
		f.subsListCalls = make(map[string]int)
	}
	f.subsListCalls[messageCls]++
	var out []*entity.Subscription
	for _, sub := range f.subs {
		if sub.MessageCls == messageCls {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (f *fakeSubscriptions) ReplaceForRecipient(
	_ context.Context, recipientID int64, prefs []repository.Preference,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	kept := f.subs[:0]
	for _, sub := range f.subs {
		if sub.RecipientID == nil || *sub.RecipientID != recipientID {
			kept = append(kept, sub)
		}
	}
	f.subs = kept

	for _, pref := range prefs {
		f.nextSubID++
		id := recipientID
		f.subs = append(f.subs, &entity.Subscription{
			ID:           f.nextSubID,
			CreatedAt:    time.Now(),
			MessageCls:   pref.MessageCls,
			MessengerCls: pref.MessengerCls,
			RecipientID:  &id,
		})
	}
	return nil
}

// countingRenderer counts template render attempts, so tests can pin down
// how often a message body was compiled.
type countingRenderer struct {
	mu     sync.Mutex
	count  int
	out    string
	failOn map[string]error
}

func (r *countingRenderer) Render(path string, _ entity.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	if err, ok := r.failOn[path]; ok {
		return "", err
	}
	if r.out != "" {
		return r.out, nil
	}
	return "rendered:" + path, nil
}

func (r *countingRenderer) renders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *countingRenderer) failPath(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == nil {
		r.failOn = make(map[string]error)
	}
	r.failOn[path] = err
}

// fakeAddressBook resolves user addresses from a static table. A missing
// entry stands for an unknown or deactivated user.
type fakeAddressBook struct {
	addresses map[int64]map[string]string
	err       error
}

func (b *fakeAddressBook) Address(_ context.Context, userID int64, messengerAlias string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	return b.addresses[userID][messengerAlias], nil
}

// testEnv wires a Service against the fakes with an echo messenger and the
// plain builtin type registered.
type testEnv struct {
	store      *memStore
	messages   *fakeMessages
	dispatches *fakeDispatches
	subs       *fakeSubscriptions
	echo       *messenger.Echo
	messengers *registry.Messengers
	types      *registry.MessageTypes
	renderer   *countingRenderer
	compiler   *message.Compiler
	svc        *Service
}

func newTestEnv() *testEnv {
	store := newMemStore()
	env := &testEnv{
		store:      store,
		messages:   &fakeMessages{store},
		dispatches: &fakeDispatches{store},
		subs:       &fakeSubscriptions{store},
		echo:       messenger.NewEcho(),
		messengers: registry.NewMessengers(),
		types:      registry.NewMessageTypes(),
		renderer:   &countingRenderer{},
	}
	env.messengers.Register(env.echo)
	env.types.Register(message.PlainText())
	env.compiler = message.NewCompiler("https://courier.test", env.renderer, nil)
	env.svc = NewService(
		env.messages, env.dispatches, env.subs,
		env.messengers, env.types, env.compiler, nil,
	)
	return env
}

// withAddressBook rebuilds the service with a user directory attached.
func (env *testEnv) withAddressBook(book AddressBook) {
	env.svc = NewService(
		env.messages, env.dispatches, env.subs,
		env.messengers, env.types, env.compiler, book,
	)
}

// scheduleEcho schedules plain text to echo addresses and returns the result.
func (env *testEnv) scheduleEcho(t *testing.T, text string, addrs ...string) *Scheduled {
	t.Helper()
	recipients := make([]entity.Recipient, 0, len(addrs))
	for _, addr := range addrs {
		recipients = append(recipients, entity.Recipient{Messenger: messenger.AliasEcho, Address: addr})
	}
	res, err := env.svc.Schedule(context.Background(), message.Plain(text), recipients, nil)
	require.NoError(t, err)
	return res
}

// scriptedMessenger is a minimal channel registrable under any alias, with
// scriptable failure points for every step of the delivery cycle.
type scriptedMessenger struct {
	alias     string
	warmupErr error

	// sendErr aborts Send at dispatch index failAt; earlier dispatches are
	// marked sent first.
	sendErr error
	failAt  int

	afterErr error

	// skipLast leaves the batch's final dispatch unmarked.
	skipLast bool

	mu        sync.Mutex
	delivered []string
	warmups   int
	cooldowns int
}

func newScriptedMessenger(alias string) *scriptedMessenger {
	return &scriptedMessenger{alias: alias}
}

func (m *scriptedMessenger) Alias() string               { return m.alias }
func (m *scriptedMessenger) Title() string               { return m.alias }
func (m *scriptedMessenger) AllowUserSubscription() bool { return true }

func (m *scriptedMessenger) Address(to any) string {
	return messenger.AddressOf(m.alias, to)
}

func (m *scriptedMessenger) BeforeSend(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warmups++
	return m.warmupErr
}

func (m *scriptedMessenger) AfterSend(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cooldowns++
	return m.afterErr
}

func (m *scriptedMessenger) Send(_ context.Context, batch *messenger.Batch, out *messenger.Outcomes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range batch.Dispatches {
		if m.sendErr != nil && i >= m.failAt {
			return m.sendErr
		}
		if m.skipLast && i == len(batch.Dispatches)-1 {
			continue
		}
		m.delivered = append(m.delivered, d.Address)
		out.MarkSent(d)
	}
	return nil
}

func (m *scriptedMessenger) SendTest(_ context.Context, to, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.delivered = append(m.delivered, to)
	return nil
}

func (m *scriptedMessenger) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.delivered...)
}

var (
	_ repository.MessageRepository      = (*fakeMessages)(nil)
	_ repository.DispatchRepository     = (*fakeDispatches)(nil)
	_ repository.SubscriptionRepository = (*fakeSubscriptions)(nil)
	_ messenger.Messenger               = (*scriptedMessenger)(nil)
	_ message.Renderer                  = (*countingRenderer)(nil)
	_ AddressBook                       = (*fakeAddressBook)(nil)
)

func ptr[T any](v T) *T { return &v }

func int64PtrEq(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
