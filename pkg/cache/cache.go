package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/coocood/freecache"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultTTL é a validade lógica padrão de uma entrada
	DefaultTTL = 15 * time.Minute

	// retentionFactor mantém a entrada fisicamente no freecache por um
	// múltiplo do TTL lógico, para que leituras stale continuem possíveis
	// como fallback de rate limit
	retentionFactor = 4

	// DefaultSizeBytes é o tamanho padrão do cache em memória
	DefaultSizeBytes = 16 * 1024 * 1024
)

// Info descreve o estado de uma entrada sem expor o payload
type Info struct {
	Found        bool
	Age          time.Duration
	TTLRemaining time.Duration
	Expired      bool
}

// Cache é o contrato do cache de respostas. Get devolve o payload mesmo
// após a expiração lógica; cabe ao chamador decidir se uma leitura stale é
// aceitável (usada exclusivamente como fallback de rate limit)
type Cache interface {
	Get(key string) ([]byte, bool)
	GetInfo(key string) Info
	Set(key string, payload []byte, ttl time.Duration) error
}

// envelope embrulha o payload com os carimbos de validade lógica
type envelope struct {
	StoredAt  int64  `json:"stored_at"`
	ExpiresAt int64  `json:"expires_at"`
	Payload   []byte `json:"payload"`
}

// ResponseCache implementa Cache sobre o freecache. A expiração lógica fica
// no envelope; o freecache cuida apenas da evicção física
type ResponseCache struct {
	store *freecache.Cache
	now   func() time.Time
}

func New(sizeBytes int) *ResponseCache {
	if sizeBytes <= 0 {
		sizeBytes = DefaultSizeBytes
	}

	return &ResponseCache{
		store: freecache.NewCache(sizeBytes),
		now:   time.Now,
	}
}

// Key deriva a chave de cache a partir da credencial. Função de mão única:
// o token bruto nunca é armazenado nem logado como chave
func Key(platform string, accessToken string) string {
	sum := sha256.Sum256([]byte(platform + ":" + accessToken))
	return hex.EncodeToString(sum[:])
}

// Set grava o payload com a validade lógica informada
func (c *ResponseCache) Set(key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := c.now()
	env := envelope{
		StoredAt:  now.UnixMilli(),
		ExpiresAt: now.Add(ttl).UnixMilli(),
		Payload:   payload,
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}

	retention := int(ttl.Seconds()) * retentionFactor
	if retention < 1 {
		retention = 1
	}

	return c.store.Set([]byte(key), raw, retention)
}

// Get devolve o payload se a entrada ainda existe fisicamente, expirada ou
// não. Consulte GetInfo para saber se a leitura é fresca
func (c *ResponseCache) Get(key string) ([]byte, bool) {
	env, ok := c.get(key)
	if !ok {
		return nil, false
	}

	return env.Payload, true
}

// GetInfo devolve idade, validade restante e estado de expiração da entrada
func (c *ResponseCache) GetInfo(key string) Info {
	env, ok := c.get(key)
	if !ok {
		return Info{}
	}

	now := c.now()
	expiresAt := time.UnixMilli(env.ExpiresAt)

	ttlRemaining := expiresAt.Sub(now)
	if ttlRemaining < 0 {
		ttlRemaining = 0
	}

	return Info{
		Found:        true,
		Age:          now.Sub(time.UnixMilli(env.StoredAt)),
		TTLRemaining: ttlRemaining,
		Expired:      now.After(expiresAt),
	}
}

func (c *ResponseCache) get(key string) (*envelope, bool) {
	raw, err := c.store.Get([]byte(key))
	if err != nil {
		// freecache devolve ErrNotFound tanto para miss quanto para
		// entradas já evictadas; ambos são miss para o chamador
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logrus.WithError(err).Warn("cache: entrada corrompida descartada")
		c.store.Del([]byte(key))
		return nil, false
	}

	return &env, true
}
