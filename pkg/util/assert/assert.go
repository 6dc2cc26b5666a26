// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package assert

import (
	"fmt"
	"reflect"
	"testing"
)

// Equal errors if actual is not equal to expected.  Integers of different
// kinds (e.g. int and uint) are compared by value.
func Equal(t *testing.T, expected, actual any, msg ...any) {
	t.Helper()
	//
	if reflect.DeepEqual(expected, actual) || intEqual(expected, actual) {
		return
	}

	t.Errorf("expected: %v, actual: %v", expected, actual)
	report(t, msg)
	t.FailNow()
}

// True errors if condition is false.
func True(t *testing.T, condition bool, msg ...any) {
	t.Helper()
	//
	if condition {
		return
	}

	t.Errorf("condition is false")
	report(t, msg)
	t.FailNow()
}

// False errors if condition is true.
func False(t *testing.T, condition bool, msg ...any) {
	t.Helper()
	//
	if !condition {
		return
	}

	t.Errorf("condition is true")
	report(t, msg)
	t.FailNow()
}

// NoError errors if err is not nil.
func NoError(t *testing.T, err error) {
	t.Helper()
	//
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
}

// Panics errors unless executing fn panics.  Internal compiler errors are
// reported by panicking, hence this is used to check they are raised.
func Panics(t *testing.T, fn func(), msg ...any) {
	t.Helper()
	//
	if !panics(fn) {
		t.Errorf("expected panic")
		report(t, msg)
		t.FailNow()
	}
}

func panics(fn func()) (result bool) {
	defer func() {
		if r := recover(); r != nil {
			result = true
		}
	}()
	//
	fn()
	//
	return false
}

func report(t *testing.T, msg []any) {
	t.Helper()
	//
	if len(msg) != 0 {
		t.Errorf("%s", fmt.Sprintf(msg[0].(string), msg[1:]...))
	}
}

// intEqual returns whether expected and actual are both integers and whether
// they are equal if that is the case.
func intEqual(expected, actual any) bool {
	a, aok := asInt64(expected)
	b, bok := asInt64(actual)
	//
	return aok && bok && a == b
}

// asInt64 tries to convert x to an int64.
func asInt64(x any) (int64, bool) {
	v := reflect.ValueOf(x)
	//
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if v.Uint() > (1<<63)-1 {
			return 0, false
		}
		//
		return int64(v.Uint()), true
	}
	//
	return 0, false
}
