package memory

// SessionService tracks the sessions open in this process and the one
// currently driving an analysis. Durable state always lives in the Store;
// the service only provides fast in-memory access to active sessions.
type SessionService struct {
	store     *Store
	active    map[string]*Session
	currentID string
}

// NewSessionService wraps a store with in-memory active-session tracking.
func NewSessionService(store *Store) *SessionService {
	return &SessionService{
		store:  store,
		active: make(map[string]*Session),
	}
}

// Start creates and persists a new session and makes it current.
func (svc *SessionService) Start(info DatasetInfo) (*Session, error) {
	sess, err := svc.store.CreateSession(info)
	if err != nil {
		return nil, err
	}
	svc.active[sess.SessionID] = sess
	svc.currentID = sess.SessionID
	return sess, nil
}

// Current returns the session driving the ongoing analysis, or nil.
func (svc *SessionService) Current() *Session {
	if svc.currentID == "" {
		return nil
	}
	return svc.active[svc.currentID]
}

// Get returns an active session by id, or nil if it is not open here.
func (svc *SessionService) Get(sessionID string) *Session {
	return svc.active[sessionID]
}

// Persist writes an active session through to the store.
func (svc *SessionService) Persist(sessionID string) error {
	sess, ok := svc.active[sessionID]
	if !ok {
		return nil
	}
	return svc.store.SaveSession(sess)
}

// End persists a session and removes it from the active set.
func (svc *SessionService) End(sessionID string) error {
	if err := svc.Persist(sessionID); err != nil {
		return err
	}
	delete(svc.active, sessionID)
	if svc.currentID == sessionID {
		svc.currentID = ""
	}
	return nil
}
