package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// TokenStore is a mock of model.TokenStore.
type TokenStore struct {
	mock.Mock
}

func (_m *TokenStore) AccessToken() (string, bool) {
	ret := _m.Called()
	return ret.String(0), ret.Bool(1)
}

func (_m *TokenStore) Set(token string) error {
	ret := _m.Called(token)
	return ret.Error(0)
}

func (_m *TokenStore) Clear() error {
	ret := _m.Called()
	return ret.Error(0)
}

// ObjectStorage is a mock of model.ObjectStorage.
type ObjectStorage struct {
	mock.Mock
}

func (_m *ObjectStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	ret := _m.Called(ctx, key, reader, size, contentType)
	return ret.Error(0)
}

func (_m *ObjectStorage) Delete(ctx context.Context, key string) error {
	ret := _m.Called(ctx, key)
	return ret.Error(0)
}

func (_m *ObjectStorage) URL(key string) string {
	ret := _m.Called(key)
	return ret.String(0)
}

// KeyValueStore is a mock of model.KeyValueStore.
type KeyValueStore struct {
	mock.Mock
}

func (_m *KeyValueStore) Get(key string) ([]byte, error) {
	ret := _m.Called(key)
	var value []byte
	if v := ret.Get(0); v != nil {
		value = v.([]byte)
	}
	return value, ret.Error(1)
}

func (_m *KeyValueStore) Put(key string, value []byte) error {
	ret := _m.Called(key, value)
	return ret.Error(0)
}

func (_m *KeyValueStore) Delete(key string) error {
	ret := _m.Called(key)
	return ret.Error(0)
}
