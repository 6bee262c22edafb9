// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

// Package mocks provides testify mocks for the auth collaborator interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/phonepass/phonepass/internal/auth"
)

// testingT is the subset of *testing.T the constructors need.
type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockPasswordHasher is a mock auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t testingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash mocks auth.PasswordHasher.Hash.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

// Verify mocks auth.PasswordHasher.Verify.
func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

// NeedsUpgrade mocks auth.PasswordHasher.NeedsUpgrade.
func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	return m.Called(hash).Bool(0)
}

// MockNotifier is a mock auth.Notifier.
type MockNotifier struct {
	mock.Mock
}

// NewMockNotifier creates a mock that asserts its expectations on cleanup.
func NewMockNotifier(t testingT) *MockNotifier {
	m := &MockNotifier{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// SendCode mocks auth.Notifier.SendCode.
func (m *MockNotifier) SendCode(ctx context.Context, phoneNumber, code string, expiresAt time.Time) error {
	return m.Called(ctx, phoneNumber, code, expiresAt).Error(0)
}

// MockCaptchaVerifier is a mock auth.CaptchaVerifier.
type MockCaptchaVerifier struct {
	mock.Mock
}

// NewMockCaptchaVerifier creates a mock that asserts its expectations on cleanup.
func NewMockCaptchaVerifier(t testingT) *MockCaptchaVerifier {
	m := &MockCaptchaVerifier{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Verify mocks auth.CaptchaVerifier.Verify.
func (m *MockCaptchaVerifier) Verify(ctx context.Context, account, proof string) (bool, error) {
	args := m.Called(ctx, account, proof)
	return args.Bool(0), args.Error(1)
}

// MockUserRepository is a mock auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a mock that asserts its expectations on cleanup.
func NewMockUserRepository(t testingT) *MockUserRepository {
	m := &MockUserRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create mocks auth.UserRepository.Create.
func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	return m.Called(ctx, user).Error(0)
}

// GetByID mocks auth.UserRepository.GetByID.
func (m *MockUserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

// GetByPhone mocks auth.UserRepository.GetByPhone.
func (m *MockUserRepository) GetByPhone(ctx context.Context, phoneNumber string) (*auth.User, error) {
	args := m.Called(ctx, phoneNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

// Update mocks auth.UserRepository.Update.
func (m *MockUserRepository) Update(ctx context.Context, user *auth.User) error {
	return m.Called(ctx, user).Error(0)
}

// MockCodeRepository is a mock auth.CodeRepository.
type MockCodeRepository struct {
	mock.Mock
}

// NewMockCodeRepository creates a mock that asserts its expectations on cleanup.
func NewMockCodeRepository(t testingT) *MockCodeRepository {
	m := &MockCodeRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// GetByPhone mocks auth.CodeRepository.GetByPhone.
func (m *MockCodeRepository) GetByPhone(ctx context.Context, phoneNumber string) (*auth.VerificationCode, error) {
	args := m.Called(ctx, phoneNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.VerificationCode), args.Error(1)
}

// Replace mocks auth.CodeRepository.Replace.
func (m *MockCodeRepository) Replace(ctx context.Context, code *auth.VerificationCode) error {
	return m.Called(ctx, code).Error(0)
}

// MarkUsed mocks auth.CodeRepository.MarkUsed.
func (m *MockCodeRepository) MarkUsed(ctx context.Context, phoneNumber string, id ulid.ULID) (bool, error) {
	args := m.Called(ctx, phoneNumber, id)
	return args.Bool(0), args.Error(1)
}

// MockAttemptRepository is a mock auth.AttemptRepository.
type MockAttemptRepository struct {
	mock.Mock
}

// NewMockAttemptRepository creates a mock that asserts its expectations on cleanup.
func NewMockAttemptRepository(t testingT) *MockAttemptRepository {
	m := &MockAttemptRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Get mocks auth.AttemptRepository.Get.
func (m *MockAttemptRepository) Get(ctx context.Context, account string) (*auth.LoginAttempt, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.LoginAttempt), args.Error(1)
}

// Increment mocks auth.AttemptRepository.Increment.
func (m *MockAttemptRepository) Increment(ctx context.Context, account string, lockThreshold int, lockUntil, now time.Time) (*auth.LoginAttempt, error) {
	args := m.Called(ctx, account, lockThreshold, lockUntil, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.LoginAttempt), args.Error(1)
}

// Reset mocks auth.AttemptRepository.Reset.
func (m *MockAttemptRepository) Reset(ctx context.Context, account string, now time.Time) error {
	return m.Called(ctx, account, now).Error(0)
}

// MockSessionRepository is a mock auth.SessionRepository.
type MockSessionRepository struct {
	mock.Mock
}

// NewMockSessionRepository creates a mock that asserts its expectations on cleanup.
func NewMockSessionRepository(t testingT) *MockSessionRepository {
	m := &MockSessionRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create mocks auth.SessionRepository.Create.
func (m *MockSessionRepository) Create(ctx context.Context, session *auth.Session) error {
	return m.Called(ctx, session).Error(0)
}

// GetByTokenHash mocks auth.SessionRepository.GetByTokenHash.
func (m *MockSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Session), args.Error(1)
}

// Delete mocks auth.SessionRepository.Delete.
func (m *MockSessionRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

// DeleteExpired mocks auth.SessionRepository.DeleteExpired.
func (m *MockSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

var (
	_ auth.PasswordHasher    = (*MockPasswordHasher)(nil)
	_ auth.Notifier          = (*MockNotifier)(nil)
	_ auth.CaptchaVerifier   = (*MockCaptchaVerifier)(nil)
	_ auth.UserRepository    = (*MockUserRepository)(nil)
	_ auth.CodeRepository    = (*MockCodeRepository)(nil)
	_ auth.AttemptRepository = (*MockAttemptRepository)(nil)
	_ auth.SessionRepository = (*MockSessionRepository)(nil)
)
