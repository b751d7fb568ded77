// Package signup runs form submission workflows against account and
// session backends: sign up, sign in and posting a comment.
//
// Signup workflow:
//   - SignupController.Submit provisions an account, exchanges the same
//     credentials for a session and then refreshes the session context.
//     Each step runs only when the previous one produced a handle, and
//     the workflow ends in exactly one Outcome.
//   - Any failure shows the same GenericRetryMessage. The account created
//     before a failed session step is left in place.
//   - Submissions sharing a session context run one at a time.
//
// Busy state:
//   - BusyFlag is the OR of the account pending, session pending and
//     session loading sources. Forms read it to disable their submit
//     button.
//
// Backends:
//   - RegisterUserHandler and SessionService implement the provisioner
//     and session interfaces on top of Bun repositories. SessionStore
//     keeps the per client token and user.
//   - RegisterSignupRoutes exposes the workflows over go-router.
package signup
