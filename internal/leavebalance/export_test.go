package leavebalance

var FillBalanceCacheHash = fillBalanceCache.Hash()
