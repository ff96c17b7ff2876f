package uwf

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Action is a parameterless UWF_Filter method.
type Action string

const (
	ActionEnable   Action = "enable"
	ActionDisable  Action = "disable"
	ActionRestart  Action = "restart"
	ActionReset    Action = "reset"
	ActionShutdown Action = "shutdown"
)

var actionMethods = map[Action]string{
	ActionEnable:   "Enable",
	ActionDisable:  "Disable",
	ActionRestart:  "RestartSystem",
	ActionReset:    "ResetSettings",
	ActionShutdown: "ShutdownSystem",
}

// Actions lists the supported actions.
func Actions() []Action {
	return []Action{ActionEnable, ActionDisable, ActionRestart, ActionReset, ActionShutdown}
}

// ErrUnknownAction is returned for names outside Actions.
var ErrUnknownAction = errors.New("uwf: unknown action")

// ErrNoFilterInstance is returned when the host exposes no UWF_Filter instance.
var ErrNoFilterInstance = errors.New("uwf: no UWF_Filter instance")

func ParseAction(name string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := actionMethods[a]; !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownAction, name)
	}
	return a, nil
}

// Method returns the UWF_Filter method name of a.
func (a Action) Method() string {
	return actionMethods[a]
}

// Invoke runs action against the UWF_Filter instance of host and waits for the
// provider to finish, at most the operation timeout. When the wait is abandoned
// the in-flight call keeps the session and closes it once it returns.
func (c *Client) Invoke(ctx context.Context, action Action, host string) (code ErrorCode, err error) {
	log := c.log.WithFields(logrus.Fields{
		"host":   hostLabel(host),
		"action": string(action),
	})
	defer func() {
		c.last.Store(code)
		if err != nil {
			log.WithError(err).WithField("code", code).Error("filter action failed")
		}
	}()

	fail := func(cause error) (ErrorCode, error) {
		f := classify(ctx, cause)
		return f.code, fmt.Errorf("%s on %s: %w", action, hostLabel(host), f.err)
	}

	method := action.Method()
	if method == "" {
		return fail(fmt.Errorf("%w %q", ErrUnknownAction, action))
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	sess, err := c.dial(ctx, host)
	if err != nil {
		return fail(err)
	}
	owned := true
	defer func() {
		if owned {
			sess.Close()
		}
	}()

	instances, err := sess.EnumerateInstances(ctx, Namespace, ClassFilter)
	if err != nil {
		return fail(err)
	}
	if len(instances) == 0 {
		return fail(ErrNoFilterInstance)
	}

	opCtx, cancel := context.WithTimeout(ctx, c.operationTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- sess.InvokeMethod(opCtx, Namespace, instances[0], method)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fail(err)
		}
		log.Info("filter action completed")
		return None, nil
	case <-opCtx.Done():
		owned = false
		go func() {
			<-done
			sess.Close()
		}()
		f := classify(opCtx, opCtx.Err())
		return f.code, fmt.Errorf("%s on %s: %w", action, hostLabel(host), f.err)
	}
}
