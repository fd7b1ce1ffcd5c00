//go:build !linux

package main

import "errors"

func newIIOSource(touchPath, potPath string) (Source, error) {
	return nil, errors.New("iio source is only supported on linux")
}
