package storage

import (
	"errors"
	"sync"

	"github.com/lib/pq"
)

// PostgreSQL SQLSTATE codes used for constraint classification
const (
	pqUniqueViolation     = pq.ErrorCode("23505")
	pqForeignKeyViolation = pq.ErrorCode("23503")
	pqNotNullViolation    = pq.ErrorCode("23502")
	pqCheckViolation      = pq.ErrorCode("23514")
)

// ErrorClass describes the kind of constraint a database error violated
type ErrorClass int

const (
	ClassOther ErrorClass = iota
	ClassUnique
	ClassForeignKey
	ClassNotNull
	ClassCheck
)

// Classifier inspects a driver error and reports its class.
// ok is false when the classifier does not recognise the error.
type Classifier func(err error) (class ErrorClass, ok bool)

var (
	classifiersMu sync.RWMutex
	classifiers   = []Classifier{classifyPQ}
)

// RegisterClassifier adds a driver specific classifier. Drivers that are only
// linked into some binaries (the SQLite test driver) register themselves here.
func RegisterClassifier(c Classifier) {
	classifiersMu.Lock()
	defer classifiersMu.Unlock()
	classifiers = append(classifiers, c)
}

// Classify returns the constraint class of err
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassOther
	}
	classifiersMu.RLock()
	defer classifiersMu.RUnlock()
	for _, c := range classifiers {
		if class, ok := c(err); ok {
			return class
		}
	}
	return ClassOther
}

// IsUniqueViolation reports whether err is a unique or primary key conflict
func IsUniqueViolation(err error) bool {
	return Classify(err) == ClassUnique
}

// IsForeignKeyViolation reports whether err references a missing row
func IsForeignKeyViolation(err error) bool {
	return Classify(err) == ClassForeignKey
}

func classifyPQ(err error) (ErrorClass, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return ClassOther, false
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		return ClassUnique, true
	case pqForeignKeyViolation:
		return ClassForeignKey, true
	case pqNotNullViolation:
		return ClassNotNull, true
	case pqCheckViolation:
		return ClassCheck, true
	default:
		return ClassOther, true
	}
}
