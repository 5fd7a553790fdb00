// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package gallery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/wavetermdev/snipgallery/pkg/gstore"
)

const (
	OfficialUserId    = "392e3ffb-785f-49c3-abdc-047014c06008"
	OfficialUserEmail = "official@snipgallery.local"
	OfficialUsername  = "SnipGallery"
)

type builtinComponent struct {
	Title      string
	Category   string
	Desc       string
	HTML       string
	CSS        string
	JS         string
	Tags       []string
	OriginLink string
	Date       string
}

func dateMillis(date string) int64 {
	ts, err := time.Parse(CardDateFormat, date)
	if err != nil {
		panic(fmt.Sprintf("bad builtin date %q", date))
	}
	return ts.UnixMilli()
}

// BuiltinComponents returns fresh records for the static starter set.
func BuiltinComponents() []*gstore.ComponentRecord {
	var rtn []*gstore.ComponentRecord
	for _, b := range builtins {
		ts := dateMillis(b.Date)
		tags := append([]string{}, b.Tags...)
		rtn = append(rtn, &gstore.ComponentRecord{
			Title:      b.Title,
			Category:   b.Category,
			Desc:       b.Desc,
			HTML:       b.HTML,
			CSS:        b.CSS,
			JS:         b.JS,
			Tags:       tags,
			OriginLink: b.OriginLink,
			UserID:     OfficialUserId,
			Builtin:    true,
			CreatedAt:  ts,
			UpdatedAt:  ts,
		})
	}
	return rtn
}

func ensureOfficialUser(ctx context.Context) error {
	_, err := gstore.DBGetUser(ctx, OfficialUserId)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gstore.ErrNotFound) {
		return err
	}
	return gstore.DBInsertUser(ctx, &gstore.UserRecord{
		ID:         OfficialUserId,
		Email:      OfficialUserEmail,
		Username:   OfficialUsername,
		IsOfficial: true,
	})
}

// Seed inserts the built-in components when the store holds no components.
// it returns how many were inserted.
func (s *Service) Seed(ctx context.Context) (int, error) {
	count, err := gstore.DBCountComponents(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}
	err = ensureOfficialUser(ctx)
	if err != nil {
		return 0, fmt.Errorf("creating official user: %w", err)
	}
	inserted := 0
	for _, rec := range BuiltinComponents() {
		err = gstore.DBInsertComponent(ctx, rec)
		if err != nil {
			return inserted, fmt.Errorf("seeding %q: %w", rec.Title, err)
		}
		inserted++
	}
	log.Printf("[gallery] seeded %d built-in components\n", inserted)
	return inserted, nil
}

var builtins = []builtinComponent{
	{
		Title:    "Gradient Divider",
		Category: CategoryStyle,
		HTML:     `<div class="gradient-divider"></div>`,
		CSS: `.gradient-divider{
  width: 180px;
  height: 1px;
  background: linear-gradient(to right, rgba(0,0,0,0.02), rgba(0,0,0,0.08), rgba(0,0,0,0.02));
}`,
		Tags: []string{"linear-gradient"},
		Date: "2025-09-12",
	},
	{
		Title:    "Rotating Gradient Border",
		Category: CategoryAnimation,
		HTML: `<a class="styles_button__SL_b_"
href="javascript:;">
  <span class="styles_content__1jMaL">Get Started<svg xmlns="http://www.w3.org/2000/svg" width="20" height="20"><path d="M4.5 10H16M16 10L11.5 5.5M16 10L11.5 14.5" stroke="currentColor" stroke-width="1.75" stroke-linecap="round" stroke-linejoin="round"></path></svg></span><span class="styles_highlight__Zryzp" style=" will-change: transform;"><span class="styles_rainbow__NLqxL" style="will-change: transform;"></span>
  </span>
</a>`,
		CSS: `@property --rotate {
  syntax: "<angle>";
  initial-value: 0deg;
  inherits: false;
}
.styles_button__SL_b_ {
  cursor: pointer;
  position: relative;
  display: inline-flex;
  text-decoration: none;
}

.styles_button__SL_b_ .styles_content__1jMaL {
  z-index: 2;
  position: relative;
  pointer-events: none;
  display: inline-flex;
  align-items: center;
  column-gap: 6px;
  box-shadow: 0 0 0 1.5px rgba(0, 0, 0, .06);
  border-radius: 50px;
  padding: 9px 16px 9px 20px;
  background-color: #fff;
  font-family: var(--font-sans);
  font-feature-settings: "cv11" on;
  font-size: 16px;
  font-weight: 500;
  line-height: 125%;
  letter-spacing: -.18px;
  color: #221d1d;
  transition: box-shadow .15s ease-in-out, background-color .15s ease-in-out;
}

.styles_button__SL_b_ .styles_highlight__Zryzp {
  z-index: 1;
  position: absolute;
  inset: -3px;
  border-radius: 50px;
  overflow: hidden;
  transform: scale(0.95,0.8);
}

.styles_button__SL_b_ .styles_highlight__Zryzp .styles_rainbow__NLqxL {
  position: absolute;
  inset: -200% -25%;
  --red: #ff8947;
  --blue: #b5e7fa;
  --purple: #9896ff;
  --green: #63bbb6;
  --yellow: #ffd631;
  background: conic-gradient(from var(--rotate) at 50% 50%, var(--red) 0deg, var(--blue) 124.43deg, var(--purple) 179.13deg, var(--green) 233.53deg, var(--yellow) 308.53deg, var(--red) 364.52deg);
}

.styles_button__SL_b_:hover .styles_highlight__Zryzp{
  animation: scaleAnimation 2s ease-in-out;
}
.styles_button__SL_b_:hover .styles_rainbow__NLqxL{
  animation: spin 2s ease-in-out;
}

@keyframes scaleAnimation{
  0%,100%{
    transform: scale(0.95, 0.8);
  }
  50%{
    transform: scale(1,1);
  }
}

@keyframes spin {
  0% {
    --rotate: 0deg;
  }

  100% {
    --rotate: 360deg;
  }
}`,
		Tags:       []string{"conic-gradient", "@property"},
		OriginLink: "https://aave.com/",
		Date:       "2025-09-15",
	},
	{
		Title:    "Dot Grid Background",
		Category: CategoryStyle,
		HTML:     `<div class="wrapper"></div>`,
		CSS: `.wrapper{
  width: 100%;
  height: 100%;
  position: relative;
  overflow: hidden;
  --pattern-fg: color-mix(in oklab, var(--color-gray-950) 5%, transparent);
  background-image: radial-gradient(var(--pattern-fg) 1px, transparent 0);
  background-size: 10px 10px;
  background-attachment: fixed;
}`,
		Tags:       []string{"background-image"},
		OriginLink: "https://tailwindcss.com/",
		Date:       "2025-09-12",
	},
	{
		Title:    "More / Close Button",
		Category: CategoryAnimation,
		Desc:     "Line icon morphing between menu and close",
		HTML: `<div class='more-close-button-wrapper'>
    <button class='header__menu-button' aria-label="menu close">
    <span class="header__menu-line top"></span>
    <span class="header__menu-line bottom"></span>
  </button>
</div>`,
		CSS: `.more-close-button-wrapper{
  width: 100%;
  height: 100%;
  display: flex;
  align-items: center;
  justify-content: center;
}

.header__menu-button {
  position: relative;
  width: 30px;
  height: 30px;
  border: none;
  cursor: pointer;
}

.header__menu-line {
  background: #000;
  display: block;
  height: 1px;
  left: 0;
  position: absolute;
  transition: all .4s ease;
  width: 100%;
}

.header__menu-line.top {
  top: 13px;
}

.header__menu-line.bottom {
  top: 17px;
}

.more-close-button-wrapper:hover .header__menu-button .header__menu-line.top {
  top: 15px;
  transform: rotate(30deg);
}

.more-close-button-wrapper:hover .header__menu-button .header__menu-line.bottom {
  top: 15px;
  transform: rotate(-30deg);
}`,
		OriginLink: "https://layrid.tomoyaokada.com/",
		Date:       "2025-09-12",
	},
	{
		Title:    "Diagonal Line Background",
		Category: CategoryStyle,
		HTML: `<div
  class="slash-bg" />`,
		CSS: `.slash-bg{
  width: 100%;
  height: 100%;
  background-size: 8px 8px;
  background-position: top left;
  color: color-mix(in oklab, #000 10%, transparent);
  background-image: repeating-linear-gradient(315deg, currentColor 0, currentColor 1px, transparent 0, transparent 50%);
}`,
		Tags:       []string{"background-image"},
		OriginLink: "https://tailwindcss.com/",
		Date:       "2025-09-12",
	},
	{
		Title:    "Text Bottom Blur",
		Category: CategoryStyle,
		Desc:     "A 1px backdrop blur is enough for a soft fade",
		HTML: `<div class="text-blur-wrapper">
  <div class="text-blur-content">
    Clicking the input label should focus the input field
    Inputs should be wrapped with a &lt;form&gt; to submit by pressing Enter
    Inputs should have an appropriate type like password, email, etc
    Inputs should disable spellcheck and autocomplete attributes most of the time
    Inputs should leverage HTML form validation by using the required attribute when appropriate
    Toggles should immediately take effect, not require confirmation
    Buttons should be disabled after submission to avoid duplicate network requests
    Interactive elements should disable user-select for inner content
    Decorative elements (glows, gradients) should disable pointer-events to not hijack events
  </div>
  <div class="text-blur-bottom"></div>
</div>`,
		CSS: `.text-blur-wrapper{
  position: relative;
  width: 100%;
  height: 192px;
  overflow: hidden;
}
.text-blur-content{
  font-size: 12px;
  height: 100%;
  padding: 12px;
  overflow: auto;
  color: #333;
  scrollbar-width: none;
}

.text-blur-bottom{
  position: absolute;
  bottom: 0;
  left: 0;
  width: 100%;
  height: 30px;
  border-bottom-left-radius: 15px;
  border-bottom-right-radius: 15px;
  pointer-events: none;
  background: linear-gradient(to bottom, transparent, #fcfcfc);
  mask-image: linear-gradient(to top, #fcfcfc 25%, transparent);
  backdrop-filter: blur(1px);
}`,
		Tags:       []string{"backdrop-filter"},
		OriginLink: "https://interfaces.rauno.me/",
		Date:       "2025-09-12",
	},
	{
		Title:    "Text Shimmer",
		Category: CategoryAnimation,
		HTML: `<div class="wrapper">
  Thinking
  <div class="light"></div>
</div>`,
		CSS: `.wrapper {
  position: relative;
  display: flex;
  align-items: center;
  justify-content: center;
}

.light {
  position: absolute;
  width: 100%;
  height: 100%;
  top: 0;
  left: 0;
  background-image: linear-gradient(106deg, transparent, transparent 35%, #fff, transparent 65%, transparent);
  opacity: 0.8;
  background-size: 258% 100%;
  animation: maskLoading 2s cubic-bezier(0.30, 0.00, 0.70, 1.00) infinite;
  pointer-events: none;
}

@keyframes maskLoading {
  0% {
    background-position: 100%;
  }

  70%,
  100% {
    background-position: 0;
  }
}`,
		Tags: []string{"background-image", "background-position"},
		Date: "2025-10-23",
	},
	{
		Title:    "Click Counter",
		Category: CategoryInteraction,
		Desc:     "Button that counts its own clicks",
		HTML:     `<button class="click-counter" type="button">Clicked <span class="click-counter-n">0</span> times</button>`,
		CSS: `.click-counter{
  padding: 8px 14px;
  border: 1px solid #e5e7eb;
  border-radius: 8px;
  background: #fff;
  cursor: pointer;
}
.click-counter:active{
  transform: scale(0.97);
}`,
		JS: `const btn = document.querySelector(".click-counter");
const n = document.querySelector(".click-counter-n");
let count = 0;
btn.addEventListener("click", () => {
  count++;
  n.textContent = String(count);
});`,
		Tags: []string{"addEventListener"},
		Date: "2025-10-24",
	},
}
