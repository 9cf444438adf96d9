// Package dedupe remembers recently seen keys for a bounded time.
//
// The web chat embeds a random nonce in every prompt form. When a browser
// resubmits the same form (refresh after POST, double click), the nonce is
// already in the cache and the prompt is not sent to the agent again:
//
//	if guard.Seen(sessionID, nonce) {
//	    // duplicate: redirect without invoking
//	}
package dedupe
