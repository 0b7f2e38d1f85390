package models

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrGeneration      = errors.New("generation failed")
	ErrResource        = errors.New("resource failure")
)
