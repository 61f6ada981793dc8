package usersearch

import (
	"strings"

	"github.com/codeGROOVE-dev/dossier/pkg/profile"
)

// builtinSites are the platforms checked when no explicit list is configured.
var builtinSites = []profile.Site{
	{ID: "github", URL: "https://github.com/%s", Kind: profile.CategoryCode, Validate: validGitHub},
	{ID: "gitlab", URL: "https://gitlab.com/%s", Kind: profile.CategoryCode},
	{ID: "codeberg", URL: "https://codeberg.org/%s", Kind: profile.CategoryCode},
	{ID: "bitbucket", URL: "https://bitbucket.org/%s/", Kind: profile.CategoryCode},
	{ID: "dockerhub", URL: "https://hub.docker.com/u/%s", Kind: profile.CategoryCode},
	{ID: "npm", URL: "https://www.npmjs.com/~%s", Kind: profile.CategoryCode},
	{ID: "pypi", URL: "https://pypi.org/user/%s/", Kind: profile.CategoryCode},
	{ID: "crates", URL: "https://crates.io/users/%s", Kind: profile.CategoryCode},
	{ID: "huggingface", URL: "https://huggingface.co/%s", Kind: profile.CategoryCode},
	{ID: "replit", URL: "https://replit.com/@%s", Kind: profile.CategoryCode},
	{ID: "leetcode", URL: "https://leetcode.com/u/%s", Kind: profile.CategoryCode},
	{ID: "codewars", URL: "https://www.codewars.com/users/%s", Kind: profile.CategoryCode},
	{ID: "keybase", URL: "https://keybase.io/%s", Kind: profile.CategoryCode},
	{ID: "hackerone", URL: "https://hackerone.com/%s", Kind: profile.CategoryCode},
	{ID: "tryhackme", URL: "https://tryhackme.com/p/%s", Kind: profile.CategoryCode},

	{ID: "twitter", URL: "https://x.com/%s", Kind: profile.CategorySocial, Validate: validTwitter,
		NotFound: []string{"this account doesn"}},
	{ID: "instagram", URL: "https://www.instagram.com/%s/", Kind: profile.CategorySocial, Validate: validInstagram},
	{ID: "facebook", URL: "https://www.facebook.com/%s", Kind: profile.CategorySocial, Auth: true},
	{ID: "linkedin", URL: "https://www.linkedin.com/in/%s", Kind: profile.CategorySocial, Auth: true, Validate: validLinkedIn},
	{ID: "tiktok", URL: "https://www.tiktok.com/@%s", Kind: profile.CategorySocial,
		NotFound: []string{"couldn't find this account"}},
	{ID: "threads", URL: "https://www.threads.net/@%s", Kind: profile.CategorySocial, Validate: validInstagram},
	{ID: "bluesky", URL: "https://bsky.app/profile/%s.bsky.social", Kind: profile.CategorySocial},
	{ID: "vkontakte", URL: "https://vk.com/%s", Kind: profile.CategorySocial},
	{ID: "linktree", URL: "https://linktr.ee/%s", Kind: profile.CategorySocial},
	{ID: "aboutme", URL: "https://about.me/%s", Kind: profile.CategorySocial},
	{ID: "telegram", URL: "https://t.me/%s", Kind: profile.CategorySocial, Validate: validTelegram,
		NotFound: []string{"if you have telegram, you can contact"}},

	{ID: "reddit", URL: "https://www.reddit.com/user/%s", Kind: profile.CategoryForum, Validate: validReddit,
		NotFound: []string{"sorry, nobody on reddit goes by that name"}},
	{ID: "hackernews", URL: "https://news.ycombinator.com/user?id=%s", Kind: profile.CategoryForum,
		NotFound: []string{"no such user"}},
	{ID: "lobsters", URL: "https://lobste.rs/~%s", Kind: profile.CategoryForum},
	{ID: "disqus", URL: "https://disqus.com/by/%s", Kind: profile.CategoryForum},
	{ID: "habr", URL: "https://habr.com/users/%s", Kind: profile.CategoryForum},
	{ID: "devto", URL: "https://dev.to/%s", Kind: profile.CategoryForum},

	{ID: "youtube", URL: "https://www.youtube.com/@%s", Kind: profile.CategoryMedia},
	{ID: "twitch", URL: "https://www.twitch.tv/%s", Kind: profile.CategoryMedia},
	{ID: "medium", URL: "https://medium.com/@%s", Kind: profile.CategoryMedia},
	{ID: "substack", URL: "https://%s.substack.com", Kind: profile.CategoryMedia},
	{ID: "dribbble", URL: "https://dribbble.com/%s", Kind: profile.CategoryMedia},
	{ID: "soundcloud", URL: "https://soundcloud.com/%s", Kind: profile.CategoryMedia},
	{ID: "speakerdeck", URL: "https://speakerdeck.com/%s", Kind: profile.CategoryMedia},

	{ID: "steam", URL: "https://steamcommunity.com/id/%s", Kind: profile.CategoryGaming,
		NotFound: []string{"the specified profile could not be found"}},
	{ID: "chess", URL: "https://www.chess.com/member/%s", Kind: profile.CategoryGaming},
	{ID: "lichess", URL: "https://lichess.org/@/%s", Kind: profile.CategoryGaming},

	{ID: "onlyfans", URL: "https://onlyfans.com/%s", Kind: profile.CategoryAdult, Adult: true},
	{ID: "fansly", URL: "https://fansly.com/%s", Kind: profile.CategoryAdult, Adult: true},
	{ID: "chaturbate", URL: "https://chaturbate.com/%s/", Kind: profile.CategoryAdult, Adult: true},
}

func init() {
	for _, s := range builtinSites {
		profile.Register(s)
	}
}

func isAlnum(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// onlyRunes reports whether every rune of s is alphanumeric or in extra.
func onlyRunes(s, extra string) bool {
	for _, c := range s {
		if !isAlnum(c) && !strings.ContainsRune(extra, c) {
			return false
		}
	}
	return true
}

// validTwitter: 4-15 chars, alphanumeric and underscores only.
func validTwitter(u string) bool {
	return len(u) >= 4 && len(u) <= 15 && onlyRunes(u, "_")
}

// validGitHub: 1-39 chars, alphanumeric and hyphens, no leading or doubled hyphen.
func validGitHub(u string) bool {
	if len(u) < 1 || len(u) > 39 || strings.HasPrefix(u, "-") || strings.Contains(u, "--") {
		return false
	}
	return onlyRunes(u, "-")
}

// validInstagram: 1-30 chars of alphanumerics, underscores, periods; no leading, trailing or doubled period.
func validInstagram(u string) bool {
	if len(u) < 1 || len(u) > 30 {
		return false
	}
	if strings.HasPrefix(u, ".") || strings.HasSuffix(u, ".") || strings.Contains(u, "..") {
		return false
	}
	return onlyRunes(u, "_.")
}

func validLinkedIn(u string) bool {
	if len(u) < 3 || len(u) > 100 {
		return false
	}
	if strings.HasPrefix(u, "-") || strings.HasSuffix(u, "-") || strings.Contains(u, "--") {
		return false
	}
	return onlyRunes(u, "-")
}

func validReddit(u string) bool {
	return len(u) >= 3 && len(u) <= 20 && onlyRunes(u, "_-")
}

func validTelegram(u string) bool {
	return len(u) >= 5 && len(u) <= 32 && onlyRunes(u, "_")
}
