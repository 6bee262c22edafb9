// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

// Package auth implements phone-number authentication: one-time verification
// codes, password login with CAPTCHA escalation and timed lockout, and bearer
// session issuance.
//
// # Domain Types
//
// Domain types (User, Session) should be created using their constructors:
//   - NewUser - creates a User with a validated phone number and login method
//   - NewSession - creates a Session with a validated subject and expiry
//
// Repository implementations receive pre-validated types from these constructors.
// Implementations live in the memory, postgres and redis subpackages.
//
// # Components
//
//   - CodeStore - issues, throttles and consumes verification codes
//   - AttemptTracker - counts password failures per account
//   - CredentialVerifier - checks codes and passwords against users
//   - SessionIssuer - mints, validates and revokes sessions
//   - Service - the SendCode, CodeLogin, PasswordLogin and Register use cases
//
// Every use case returns an Outcome value. Only collaborator failures are
// returned as errors; they match ErrStorageFailure.
package auth
