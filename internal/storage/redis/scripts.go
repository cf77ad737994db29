package redis

import "github.com/redis/go-redis/v9"

const (
	// replaceAccumulatorsScript swaps the whole accumulator hash in one step
	replaceAccumulatorsScript = `
local table_key = KEYS[1]     -- tvbudget:accumulators

redis.call('DEL', table_key)

-- ARGV holds theme, encoded accumulator pairs
for i = 1, #ARGV, 2 do
  redis.call('HSET', table_key, ARGV[i], ARGV[i + 1])
end

return #ARGV / 2
`

	// appendSessionScript stores a session record and indexes it by end time
	appendSessionScript = `
local record_key = KEYS[1]    -- tvbudget:session:{id}
local index_key = KEYS[2]     -- tvbudget:sessions

local id = ARGV[1]
local payload = ARGV[2]
local ended_at = tonumber(ARGV[3])

redis.call('SET', record_key, payload)
redis.call('ZADD', index_key, ended_at, id)

return 'OK'
`

	// pruneSessionsScript deletes every session that ended before a cutoff
	pruneSessionsScript = `
local index_key = KEYS[1]     -- tvbudget:sessions
local cutoff = ARGV[1]        -- exclusive upper bound, e.g. "(1700000000000"
local prefix = ARGV[2]        -- tvbudget:session:

local ids = redis.call('ZRANGEBYSCORE', index_key, '-inf', cutoff)
for _, id in ipairs(ids) do
  redis.call('DEL', prefix .. id)
end
if #ids > 0 then
  redis.call('ZREMRANGEBYSCORE', index_key, '-inf', cutoff)
end

return #ids
`
)

var (
	replaceAccumulators = redis.NewScript(replaceAccumulatorsScript)
	appendSession       = redis.NewScript(appendSessionScript)
	pruneSessions       = redis.NewScript(pruneSessionsScript)
)
