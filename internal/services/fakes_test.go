package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chatboard/internal/models"
)

// ===========================================================================
// In-memory fakes cho services tests
// Clone khi đọc/ghi để mô phỏng rows tách biệt từ DB
// ===========================================================================

func cloneBoard(b models.Board) models.Board {
	rooms := make(models.Rooms, len(b.Rooms))
	for i, r := range b.Rooms {
		r.Chats = append([]models.Chat(nil), r.Chats...)
		rooms[i] = r
	}
	b.Rooms = rooms
	b.Subscriptions = append(models.Subscriptions(nil), b.Subscriptions...)
	return b
}

// fakeBoardRepo in-memory BoardRepository
type fakeBoardRepo struct {
	mu         sync.Mutex
	boards     []models.Board
	failUpdate map[uuid.UUID]bool

	// beforeUpdate hook chạy trước mỗi Update, cho tests điều khiển
	// interleaving của các caller đồng thời
	beforeUpdate func(*models.Board)
}

func (r *fakeBoardRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Board, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.boards {
		if r.boards[i].ID == id {
			b := cloneBoard(r.boards[i])
			return &b, nil
		}
	}
	return nil, fmt.Errorf("board %s not found", id)
}

func (r *fakeBoardRepo) FindByCompany(ctx context.Context, companyID uuid.UUID) ([]models.Board, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.Board
	for i := range r.boards {
		if r.boards[i].CompanyID == companyID {
			result = append(result, cloneBoard(r.boards[i]))
		}
	}
	return result, nil
}

func (r *fakeBoardRepo) Create(ctx context.Context, b *models.Board) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	r.boards = append(r.boards, cloneBoard(*b))
	return nil
}

func (r *fakeBoardRepo) Update(ctx context.Context, b *models.Board) error {
	if r.beforeUpdate != nil {
		r.beforeUpdate(b)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate[b.ID] {
		return fmt.Errorf("update board %s: forced failure", b.ID)
	}
	for i := range r.boards {
		if r.boards[i].ID == b.ID {
			r.boards[i] = cloneBoard(*b)
			return nil
		}
	}
	return fmt.Errorf("board %s not found", b.ID)
}

func (r *fakeBoardRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.boards {
		if r.boards[i].ID == id {
			r.boards = append(r.boards[:i], r.boards[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeBoardRepo) mustGet(t *testing.T, id uuid.UUID) *models.Board {
	t.Helper()
	b, err := r.FindByID(context.Background(), id)
	require.NoError(t, err)
	return b
}

// fakeBotRepo in-memory BotRepository
type fakeBotRepo struct {
	mu   sync.Mutex
	bots []models.Bot
}

func cloneBot(b models.Bot) models.Bot {
	b.ActiveOn = append(models.ActiveConversations(nil), b.ActiveOn...)
	b.PausedOn = append(models.PausedConversations(nil), b.PausedOn...)
	b.Channels = append(models.ChannelBindings(nil), b.Channels...)
	return b
}

func (r *fakeBotRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Bot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.bots {
		if r.bots[i].ID == id {
			b := cloneBot(r.bots[i])
			return &b, nil
		}
	}
	return nil, fmt.Errorf("bot %s not found", id)
}

func (r *fakeBotRepo) FindByCompany(ctx context.Context, companyID uuid.UUID) ([]models.Bot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.Bot
	for i := range r.bots {
		if r.bots[i].CompanyID == companyID {
			result = append(result, cloneBot(r.bots[i]))
		}
	}
	return result, nil
}

func (r *fakeBotRepo) FindAll(ctx context.Context) ([]models.Bot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]models.Bot, 0, len(r.bots))
	for i := range r.bots {
		result = append(result, cloneBot(r.bots[i]))
	}
	return result, nil
}

func (r *fakeBotRepo) Create(ctx context.Context, b *models.Bot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	r.bots = append(r.bots, cloneBot(*b))
	return nil
}

func (r *fakeBotRepo) Update(ctx context.Context, b *models.Bot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.bots {
		if r.bots[i].ID == b.ID {
			r.bots[i] = cloneBot(*b)
			return nil
		}
	}
	return fmt.Errorf("bot %s not found", b.ID)
}

func (r *fakeBotRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.bots {
		if r.bots[i].ID == id {
			r.bots = append(r.bots[:i], r.bots[i+1:]...)
			return nil
		}
	}
	return nil
}

// fakeOvenRepo in-memory OvenRepository
type fakeOvenRepo struct {
	mu    sync.Mutex
	ovens []models.Oven
}

func cloneOven(o models.Oven) models.Oven {
	o.Queue = append(models.OvenQueue(nil), o.Queue...)
	o.Blacklist = append(models.Blacklist(nil), o.Blacklist...)
	o.Log = append(models.SendLog(nil), o.Log...)
	return o
}

func (r *fakeOvenRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Oven, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.ovens {
		if r.ovens[i].ID == id {
			o := cloneOven(r.ovens[i])
			return &o, nil
		}
	}
	return nil, fmt.Errorf("oven %s not found", id)
}

func (r *fakeOvenRepo) FindByCompany(ctx context.Context, companyID uuid.UUID) ([]models.Oven, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.Oven
	for i := range r.ovens {
		if r.ovens[i].CompanyID == companyID {
			result = append(result, cloneOven(r.ovens[i]))
		}
	}
	return result, nil
}

func (r *fakeOvenRepo) FindByInstance(ctx context.Context, instanceID uuid.UUID) (*models.Oven, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.ovens {
		if r.ovens[i].ChannelInstanceID == instanceID {
			o := cloneOven(r.ovens[i])
			return &o, nil
		}
	}
	return nil, fmt.Errorf("oven for instance %s not found", instanceID)
}

func (r *fakeOvenRepo) FindAll(ctx context.Context) ([]models.Oven, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]models.Oven, 0, len(r.ovens))
	for i := range r.ovens {
		result = append(result, cloneOven(r.ovens[i]))
	}
	return result, nil
}

func (r *fakeOvenRepo) Create(ctx context.Context, o *models.Oven) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	r.ovens = append(r.ovens, cloneOven(*o))
	return nil
}

func (r *fakeOvenRepo) Update(ctx context.Context, o *models.Oven) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.ovens {
		if r.ovens[i].ID == o.ID {
			r.ovens[i] = cloneOven(*o)
			return nil
		}
	}
	return fmt.Errorf("oven %s not found", o.ID)
}

func (r *fakeOvenRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.ovens {
		if r.ovens[i].ID == id {
			r.ovens = append(r.ovens[:i], r.ovens[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeOvenRepo) mustGet(t *testing.T, id uuid.UUID) *models.Oven {
	t.Helper()
	o, err := r.FindByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

// fakeInstanceRepo in-memory ChannelInstanceRepository
type fakeInstanceRepo struct {
	mu        sync.Mutex
	instances []models.ChannelInstance
}

func (r *fakeInstanceRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.ChannelInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.instances {
		if r.instances[i].ID == id {
			inst := r.instances[i]
			return &inst, nil
		}
	}
	return nil, fmt.Errorf("instance %s not found", id)
}

func (r *fakeInstanceRepo) FindByCompany(ctx context.Context, companyID uuid.UUID) ([]models.ChannelInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.ChannelInstance
	for i := range r.instances {
		if r.instances[i].CompanyID == companyID {
			result = append(result, r.instances[i])
		}
	}
	return result, nil
}

func (r *fakeInstanceRepo) FindActive(ctx context.Context) ([]models.ChannelInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.ChannelInstance
	for i := range r.instances {
		if r.instances[i].IsActive {
			result = append(result, r.instances[i])
		}
	}
	return result, nil
}

func (r *fakeInstanceRepo) Create(ctx context.Context, inst *models.ChannelInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst.ID == uuid.Nil {
		inst.ID = uuid.New()
	}
	r.instances = append(r.instances, *inst)
	return nil
}

func (r *fakeInstanceRepo) Update(ctx context.Context, inst *models.ChannelInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.instances {
		if r.instances[i].ID == inst.ID {
			r.instances[i] = *inst
			return nil
		}
	}
	return fmt.Errorf("instance %s not found", inst.ID)
}

func (r *fakeInstanceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.instances {
		if r.instances[i].ID == id {
			r.instances = append(r.instances[:i], r.instances[i+1:]...)
			return nil
		}
	}
	return nil
}

// ===========================================================================
// Publisher double
// ===========================================================================

// publishedEvent một event đã publish qua capturePublisher
type publishedEvent struct {
	Topic string
	Event string
	Data  interface{}
}

// capturePublisher lưu mọi event đã publish để verify
type capturePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *capturePublisher) Publish(topic, event string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Topic: topic, Event: event, Data: data})
	return nil
}

func (p *capturePublisher) eventNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		names = append(names, ev.Event)
	}
	return names
}
