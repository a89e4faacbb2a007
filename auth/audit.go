// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auth

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditMethod is called to log the audit trail of fibctl invocations.
type AuditMethod interface {
	// Authentication logs an authentication attempt.
	Authentication(operator, address string, err error)
	// Authorization logs a permission check.
	Authorization(req Request, p Permission, err error)
	// Command logs a completed admin command, however it turned out.
	Command(req Request, d time.Duration, err error)
}

// NewAudit wraps auth so every Allowed call also reaches method.
func NewAudit(auth Auth, method AuditMethod) Auth {
	return &Audit{auth: auth, method: method}
}

// Audit is an Auth proxy that sends audit trails to an AuditMethod.
type Audit struct {
	auth   Auth
	method AuditMethod
}

// Allowed implements Auth.
func (a *Audit) Allowed(req Request, permission Permission) error {
	err := a.auth.Allowed(req, permission)
	a.method.Authorization(req, permission, err)
	return err
}

// Command records a finished admin command through a's AuditMethod,
// unwrapping nested Audit layers so the trail isn't duplicated.
func (a *Audit) Command(req Request, d time.Duration, err error) {
	if inner, ok := a.auth.(*Audit); ok {
		inner.Command(req, d, err)
	}
	a.method.Command(req, d, err)
}

// NewAuditLog creates an AuditMethod that logs to a logrus.Logger.
func NewAuditLog(l *logrus.Logger) AuditMethod {
	return &AuditLog{log: l.WithField("system", "audit")}
}

const auditLogMessage = "audit trail"

// AuditLog logs audit trails to a logrus.Entry.
type AuditLog struct {
	log *logrus.Entry
}

// Authentication implements AuditMethod.
func (a *AuditLog) Authentication(operator, address string, err error) {
	fields := logrus.Fields{
		"action":   "authentication",
		"operator": operator,
		"address":  address,
		"success":  true,
	}
	if err != nil {
		fields["success"] = false
		fields["err"] = err
	}
	a.log.WithFields(fields).Info(auditLogMessage)
}

func commandInfo(req Request, err error) logrus.Fields {
	fields := logrus.Fields{
		"operator": req.Operator,
		"address":  req.Address,
		"command":  req.Command,
		"success":  true,
	}
	if err != nil {
		fields["success"] = false
		fields["err"] = err
	}
	return fields
}

// Authorization implements AuditMethod.
func (a *AuditLog) Authorization(req Request, p Permission, err error) {
	fields := commandInfo(req, err)
	fields["action"] = "authorization"
	fields["permission"] = p.String()
	a.log.WithFields(fields).Info(auditLogMessage)
}

// Command implements AuditMethod.
func (a *AuditLog) Command(req Request, d time.Duration, err error) {
	fields := commandInfo(req, err)
	fields["action"] = "command"
	fields["duration"] = d
	a.log.WithFields(fields).Info(auditLogMessage)
}
