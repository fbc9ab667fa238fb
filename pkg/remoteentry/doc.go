/*
Package remoteentry implements the remote side of a dispatched call: fetch
the invocation, verify lock ownership, invoke the registered function,
capture its outcome, and write a result or exception control file.

Execute implements the protocol in eight steps:

 1. Verify the caller's writer id still owns the memo URI's lease.
 2. Fetch and deserialize the Thunk.
 3. Start lease maintenance as a co-owner for the call's duration.
 4. Look up the registered function by FuncRef.
 5. Invoke it, recovering from panics as captured exceptions.
 6. Serialize the outcome into an Envelope, including backend-supplied
    Extra metadata (containerd task id, cluster agent id, ...).
 7. Write result/<run_id> or exception/<run_id> plus the
    result-metadata/<run_id> sidecar.
 8. Stop lease maintenance and return.

run_id has the form YYMMDDHHmm-TwoWords, produced by pkg/memokey/humanencode
over a random two-byte seed, so concurrent runs of the same memo URI are
unlikely to collide.
*/
package remoteentry
