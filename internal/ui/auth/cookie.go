// Пакет auth — привязка браузера к клиенту консоли.
//
// Браузер получает зашифрованный cookie (AES-256-GCM) с идентификатором
// клиента. По нему сервер находит контекст сессии и хранилище токена;
// сам токен доступа в cookie не попадает.
package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CookieName — имя cookie клиента консоли.
const CookieName = "console_client"

// ClientData — содержимое cookie клиента.
type ClientData struct {
	// ClientID — идентификатор клиента, он же пространство имён хранилища.
	ClientID string `json:"cid"`
	// IssuedAt — время выдачи (Unix timestamp).
	IssuedAt int64 `json:"iat"`
}

// CookieManager шифрует и дешифрует ClientData в HTTP cookie.
type CookieManager struct {
	gcm    cipher.AEAD
	secure bool
	maxAge time.Duration
}

// NewCookieManager создаёт менеджер cookie.
// key — base64 от 32 байт или произвольная строка (хешируется SHA-256).
// Пустой key — случайный ключ, клиенты не переживают рестарт.
func NewCookieManager(key string, secure bool, maxAge time.Duration) (*CookieManager, error) {
	var keyBytes []byte

	if key == "" {
		keyBytes = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, keyBytes); err != nil {
			return nil, fmt.Errorf("ошибка генерации ключа cookie: %w", err)
		}
	} else {
		var err error
		keyBytes, err = base64.StdEncoding.DecodeString(key)
		if err != nil || len(keyBytes) != 32 {
			keyBytes = sha256Key(key)
		}
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания GCM: %w", err)
	}

	return &CookieManager{gcm: gcm, secure: secure, maxAge: maxAge}, nil
}

// Encrypt шифрует ClientData в base64-строку.
func (m *CookieManager) Encrypt(data *ClientData) (string, error) {
	plaintext, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации cookie: %w", err)
	}

	nonce := make([]byte, m.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("ошибка генерации nonce: %w", err)
	}

	ciphertext := m.gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

// Decrypt дешифрует base64-строку в ClientData.
func (m *CookieManager) Decrypt(encrypted string) (*ClientData, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("ошибка декодирования base64: %w", err)
	}

	nonceSize := m.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, errors.New("зашифрованные данные слишком короткие")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := m.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка дешифрования cookie: %w", err)
	}

	var data ClientData
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, fmt.Errorf("ошибка десериализации cookie: %w", err)
	}
	if data.ClientID == "" {
		return nil, errors.New("cookie не содержит идентификатора клиента")
	}
	return &data, nil
}

// SetCookie записывает cookie клиента в ответ. Повторная запись
// продлевает срок жизни cookie.
func (m *CookieManager) SetCookie(w http.ResponseWriter, data *ClientData) error {
	encrypted, err := m.Encrypt(data)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    encrypted,
		Path:     "/",
		MaxAge:   int(m.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// FromRequest извлекает ClientData из cookie запроса.
// Возвращает nil, nil, если cookie отсутствует.
func (m *CookieManager) FromRequest(r *http.Request) (*ClientData, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return nil, nil
		}
		return nil, err
	}
	return m.Decrypt(cookie.Value)
}

// ClearCookie удаляет cookie клиента.
func (m *CookieManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func sha256Key(key string) []byte {
	h := sha256.Sum256([]byte(key))
	return h[:]
}
