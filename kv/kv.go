package kv

import (
	"errors"
	"fmt"
	"time"

	"github.com/cpc-project/nvm3"
	"github.com/cpc-project/nvm3/cpc"
	"github.com/cpc-project/nvm3/metrics"
)

// MaxKey is the largest key the NVM3 storage engine accepts.
const MaxKey nvm3.ObjectKey = 0xFFFFF

// DefaultRetries is used when Config.Retries is zero.
const DefaultRetries = 3

// KV is a key/value store backed by NVM3 objects.
type KV interface {
	Get(key nvm3.ObjectKey) ([]byte, error)
	Set(key nvm3.ObjectKey, value []byte) error
	Delete(key nvm3.ObjectKey) error
	Keys() ([]nvm3.ObjectKey, error)
	Info(key nvm3.ObjectKey) (nvm3.ObjectInfo, error)
	Counter(key nvm3.ObjectKey) (uint32, error)
	SetCounter(key nvm3.ObjectKey, value uint32) error
	Increment(key nvm3.ObjectKey) (uint32, error)
	Close() error
}

// Config configures a Client.
type Config struct {
	// Handle reuses an instance the caller already opened. Close then
	// leaves it open. When zero, New creates and opens its own instance.
	Handle nvm3.Handle

	// Instance names the daemon instance to open. Defaults to cpc.DefaultInstance.
	Instance string

	// Tracing asks the daemon to trace the endpoint traffic.
	Tracing bool

	// Dialer and Metrics are passed to nvm3.InitWithConfig.
	Dialer  cpc.Dialer
	Metrics metrics.Recorder

	// Timeout replaces the default call timeout when positive. NoTimeout
	// lets calls wait forever. Zero keeps nvm3.DefaultTimeout.
	Timeout time.Duration

	// Retries bounds how often a call failing with nvm3.ErrTryAgain is
	// resubmitted. Negative disables retries.
	Retries int

	// Backoff is the pause between retries.
	Backoff time.Duration
}

var (
	ErrInvalidKey   = errors.New("key is invalid")
	ErrInvalidValue = errors.New("value is invalid")
	ErrKeyNotFound  = errors.New("key not found")

	// ErrWrongType is returned when a data accessor meets a counter or the reverse.
	ErrWrongType = errors.New("object has the wrong type")
)

// NoTimeout disables the call deadline when used as Config.Timeout.
const NoTimeout time.Duration = -1

// Client implements KV over one NVM3 instance.
type Client struct {
	h       nvm3.Handle
	owned   bool
	retries int
	backoff time.Duration
}

// New opens the store.
func New(cfg Config) (*Client, error) {
	c := &Client{h: cfg.Handle, retries: cfg.Retries, backoff: cfg.Backoff}
	if c.retries == 0 {
		c.retries = DefaultRetries
	}

	if c.h == 0 {
		h, err := nvm3.InitWithConfig(nvm3.Config{Dialer: cfg.Dialer, Metrics: cfg.Metrics})
		if err != nil {
			return nil, err
		}
		if err := nvm3.Open(h, cfg.Instance, cfg.Tracing); err != nil {
			_ = nvm3.Deinit(h)
			return nil, err
		}
		c.h, c.owned = h, true
	}

	if cfg.Timeout != 0 {
		timeout := max(cfg.Timeout, 0)
		s := int(timeout / time.Second)
		us := int(timeout % time.Second / time.Microsecond)
		if err := nvm3.SetTimeout(c.h, s, us); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}

// Handle returns the NVM3 instance behind the client.
func (c *Client) Handle() nvm3.Handle { return c.h }

// Close closes and deinitializes the instance when the client opened it.
func (c *Client) Close() error {
	if !c.owned {
		return nil
	}
	c.owned = false
	return errors.Join(nvm3.Close(c.h), nvm3.Deinit(c.h))
}

// Get returns a copy of the data object stored under key.
func (c *Client) Get(key nvm3.ObjectKey) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}

	var value []byte
	err := c.retry(func() error {
		info, err := nvm3.GetObjectInfo(c.h, key)
		if err != nil {
			return err
		}
		if info.Type != nvm3.ObjectData {
			return fmt.Errorf("%w: key %d is a %s", ErrWrongType, key, info.Type)
		}

		buf := make([]byte, max(info.Size, 1))
		n, err := nvm3.ReadData(c.h, key, buf)
		if errors.Is(err, nvm3.ErrBufferTooSmall) {
			// Rewritten between the two calls.
			return &nvm3.Error{Code: nvm3.ErrTryAgain, Err: err}
		}
		if err != nil {
			return err
		}
		value = buf[:n]
		return nil
	})
	return value, translate(key, err)
}

// Set stores value under key, replacing any previous object.
func (c *Client) Set(key nvm3.ObjectKey, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	if len(value) == 0 {
		return ErrInvalidValue
	}
	return translate(key, c.retry(func() error {
		return nvm3.WriteData(c.h, key, value)
	}))
}

// Delete removes the object stored under key.
func (c *Client) Delete(key nvm3.ObjectKey) error {
	if err := validKey(key); err != nil {
		return err
	}
	return translate(key, c.retry(func() error {
		return nvm3.DeleteObject(c.h, key)
	}))
}

// Keys lists every stored key in the order reported by the device.
func (c *Client) Keys() ([]nvm3.ObjectKey, error) {
	var keys []nvm3.ObjectKey
	err := c.retry(func() error {
		n, err := nvm3.GetObjectCount(c.h)
		if err != nil {
			return err
		}

		// Objects may appear between the calls, so grow until the listing fits.
		for {
			buf := make([]nvm3.ObjectKey, max(n, 1))
			total, err := nvm3.ListObjects(c.h, buf)
			if err != nil {
				return err
			}
			if total <= len(buf) {
				keys = buf[:total]
				return nil
			}
			n = total
		}
	})
	return keys, err
}

// Info returns the size and type of the object stored under key.
func (c *Client) Info(key nvm3.ObjectKey) (nvm3.ObjectInfo, error) {
	if err := validKey(key); err != nil {
		return nvm3.ObjectInfo{}, err
	}
	var info nvm3.ObjectInfo
	err := c.retry(func() (err error) {
		info, err = nvm3.GetObjectInfo(c.h, key)
		return err
	})
	return info, translate(key, err)
}

// Counter returns the value of the counter under key.
func (c *Client) Counter(key nvm3.ObjectKey) (uint32, error) {
	if err := validKey(key); err != nil {
		return 0, err
	}
	var v uint32
	err := c.retry(func() (err error) {
		v, err = nvm3.ReadCounter(c.h, key)
		return err
	})
	return v, translate(key, err)
}

// SetCounter stores value in the counter under key.
func (c *Client) SetCounter(key nvm3.ObjectKey, value uint32) error {
	if err := validKey(key); err != nil {
		return err
	}
	return translate(key, c.retry(func() error {
		return nvm3.WriteCounter(c.h, key, value)
	}))
}

// Increment adds one to the counter under key and returns the new value.
// It is never retried: a lost reply could otherwise count twice.
func (c *Client) Increment(key nvm3.ObjectKey) (uint32, error) {
	if err := validKey(key); err != nil {
		return 0, err
	}
	v, err := nvm3.IncrementCounter(c.h, key)
	return v, translate(key, err)
}

func (c *Client) retry(fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if !errors.Is(err, nvm3.ErrTryAgain) || attempt >= c.retries {
			return err
		}
		if c.backoff > 0 {
			time.Sleep(c.backoff)
		}
	}
}

func validKey(key nvm3.ObjectKey) error {
	if key > MaxKey {
		return fmt.Errorf("%w: %d exceeds %d", ErrInvalidKey, key, MaxKey)
	}
	return nil
}

// translate reports a missing object as ErrKeyNotFound while keeping the
// NVM3 error in the chain.
func translate(key nvm3.ObjectKey, err error) error {
	if errors.Is(err, nvm3.ErrInvalidObjectKey) {
		return fmt.Errorf("%w: %d: %w", ErrKeyNotFound, key, err)
	}
	return err
}

var _ KV = (*Client)(nil)
