package filter

import (
	"fmt"
	"sync"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	lru "github.com/hashicorp/golang-lru"
	"github.com/mitchellh/mapstructure"
	"github.com/tcriess/lightspeed-roster/globals"
)

const programCacheSize = 128

var (
	programCache     *lru.Cache
	programCacheOnce sync.Once
)

func programs() *lru.Cache {
	programCacheOnce.Do(func() {
		var err error
		programCache, err = lru.New(programCacheSize)
		if err != nil {
			panic(err)
		}
	})
	return programCache
}

// Compile checks a rule against the Env, compiled rules are cached.
func Compile(rule string) (*vm.Program, error) {
	if p, ok := programs().Get(rule); ok {
		return p.(*vm.Program), nil
	}
	program, err := expr.Compile(rule, expr.Env(Env{}))
	if err != nil {
		return nil, fmt.Errorf("could not compile rule %q: %w", rule, err)
	}
	programs().Add(rule, program)
	return program, nil
}

// Allowed evaluates rule in env. The empty rule allows everything; results that are not a boolean are weakly
// converted, so a rule may as well return a number or "true".
func Allowed(rule string, env Env) (bool, error) {
	if rule == "" {
		return true, nil
	}
	program, err := Compile(rule)
	if err != nil {
		return false, err
	}
	res, err := expr.Run(program, env)
	if err != nil {
		globals.AppLogger.Error("could not evaluate rule", "rule", rule, "env", env, "error", err)
		return false, err
	}
	allowed := false
	if err = mapstructure.WeakDecode(res, &allowed); err != nil {
		return false, fmt.Errorf("rule %q did not evaluate to a boolean: %w", rule, err)
	}
	return allowed, nil
}
