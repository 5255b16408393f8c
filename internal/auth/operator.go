package auth

import (
	"errors"
	"strings"
	"sync"

	"github.com/annel0/backinv/internal/config"
	"golang.org/x/crypto/bcrypt"
)

// Domain-level errors returned by the repository.
var (
	ErrOperatorNotFound   = errors.New("operator not found")
	ErrOperatorExists     = errors.New("operator already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Operator - учётная запись, которой разрешён REST API
type Operator struct {
	Name         string
	PasswordHash string // bcrypt
	Level        int    // уровень прав, как у команд (2 - оператор)
}

// OperatorRepo is a threadsafe in-memory operator registry.
// Учётные записи приходят из секции api.operators конфигурации.
type OperatorRepo struct {
	mu  sync.RWMutex
	ops map[string]*Operator // key = lowercase(name)
}

// NewOperatorRepo создаёт реестр из конфигурации
func NewOperatorRepo(cfgs []config.OperatorConfig) (*OperatorRepo, error) {
	r := &OperatorRepo{ops: make(map[string]*Operator)}
	for _, c := range cfgs {
		if err := r.Add(&Operator{Name: c.Name, PasswordHash: c.PasswordHash, Level: c.Level}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add регистрирует оператора
func (r *OperatorRepo) Add(op *Operator) error {
	if op.Name == "" {
		return errors.New("operator name is empty")
	}
	key := normalize(op.Name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ops[key]; exists {
		return ErrOperatorExists
	}
	r.ops[key] = op
	return nil
}

// Get retrieves operator by case-insensitive name.
func (r *OperatorRepo) Get(name string) (*Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[normalize(name)]
	if !ok {
		return nil, ErrOperatorNotFound
	}
	return op, nil
}

// ValidateCredentials проверяет имя и пароль оператора
func (r *OperatorRepo) ValidateCredentials(name, password string) (*Operator, error) {
	op, err := r.Get(name)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !CheckPassword(op.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return op, nil
}

// Len возвращает число операторов
func (r *OperatorRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ops)
}

// HashPassword returns a bcrypt hash of the password using DefaultCost.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPassword compares a bcrypt hashed password with its possible plaintext equivalent.
func CheckPassword(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func normalize(name string) string {
	return strings.ToLower(name)
}
